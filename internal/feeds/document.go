package feeds

import (
	"errors"
	"fmt"

	"github.com/beevik/etree"
)

const (
	DefaultTitle       = "Redish"
	DefaultDescription = "Save links to an RSS feed you can ignore from anywhere."
	DefaultLink        = "https://redish.app"

	indentSpaces = 2
)

var errNoChannel = errors.New("feed document has no rss/channel element")

// newDocument renders an empty RSS 2.0 feed with the given channel metadata.
func newDocument(title, description, link string) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0"`)

	rss := doc.CreateElement("rss")
	rss.CreateAttr("version", "2.0")

	channel := rss.CreateElement("channel")
	channel.CreateElement("title").SetText(title)
	channel.CreateElement("description").SetText(description)
	channel.CreateElement("link").SetText(link)

	return render(doc)
}

// appendItem parses src, adds one <item> as the last child of <channel> and
// renders the result. Everything else in the document keeps its order.
func appendItem(src []byte, title, link string) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(src); err != nil {
		return nil, fmt.Errorf("parse feed document: %w", err)
	}

	rss := doc.SelectElement("rss")
	if rss == nil {
		return nil, errNoChannel
	}
	channel := rss.SelectElement("channel")
	if channel == nil {
		return nil, errNoChannel
	}

	item := channel.CreateElement("item")
	item.CreateElement("title").SetText(title)
	item.CreateElement("link").SetText(link)

	return render(doc)
}

func render(doc *etree.Document) ([]byte, error) {
	doc.Indent(indentSpaces)
	b, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("render feed document: %w", err)
	}
	return b, nil
}
