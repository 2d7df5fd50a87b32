package feeds

import (
	"strings"
	"testing"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocument(t *testing.T) {
	b, err := newDocument(DefaultTitle, DefaultDescription, DefaultLink)
	require.NoError(t, err)
	doc := string(b)

	assert.True(t, strings.HasPrefix(doc, `<?xml version="1.0"?>`), doc)
	assert.Contains(t, doc, "\n<rss version=\"2.0\">\n  <channel>\n    <title>Redish</title>\n")
	assert.Contains(t, doc, "\n    <description>Save links to an RSS feed you can ignore from anywhere.</description>\n")
	assert.Contains(t, doc, "\n    <link>https://redish.app</link>\n  </channel>\n</rss>")
	assert.NotContains(t, doc, "<item>")

	feed, err := gofeed.NewParser().ParseString(doc)
	require.NoError(t, err)
	assert.Equal(t, "rss", feed.FeedType)
	assert.Equal(t, "2.0", feed.FeedVersion)
	assert.Empty(t, feed.Items)
}

func TestAppendItem_KeepsChannelAndOrder(t *testing.T) {
	b, err := newDocument(DefaultTitle, DefaultDescription, DefaultLink)
	require.NoError(t, err)

	links := []string{
		"https://example.com/a",
		"https://example.com/b?x=1&y=2",
		"https://example.com/c",
	}
	for _, l := range links {
		b, err = appendItem(b, l, l)
		require.NoError(t, err)
	}
	doc := string(b)

	assert.Contains(t, doc, "\n    <item>\n      <title>https://example.com/a</title>\n      <link>https://example.com/a</link>\n    </item>\n")
	assert.Contains(t, doc, "https://example.com/b?x=1&amp;y=2")

	feed, err := gofeed.NewParser().ParseString(doc)
	require.NoError(t, err)
	assert.Equal(t, DefaultTitle, feed.Title)
	assert.Equal(t, DefaultDescription, feed.Description)
	assert.Equal(t, DefaultLink, feed.Link)
	require.Len(t, feed.Items, 3)
	for i, l := range links {
		assert.Equal(t, l, feed.Items[i].Title)
		assert.Equal(t, l, feed.Items[i].Link)
	}
}

func TestAppendItem_PreservesForeignContent(t *testing.T) {
	src := `<?xml version="1.0"?>
<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">
  <channel>
    <title>Mine</title>
    <atom:link href="https://x.test/feed" rel="self"/>
    <description>d</description>
    <link>https://x.test</link>
  </channel>
</rss>
`
	b, err := appendItem([]byte(src), "t", "https://x.test/1")
	require.NoError(t, err)
	doc := string(b)

	assert.Contains(t, doc, `<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	assert.Contains(t, doc, `<atom:link href="https://x.test/feed" rel="self"/>`)
	assert.Less(t, strings.Index(doc, "<atom:link"), strings.Index(doc, "<description>"))
	assert.Less(t, strings.Index(doc, "<link>https://x.test</link>"), strings.Index(doc, "<item>"))
}

func TestAppendItem_Malformed(t *testing.T) {
	_, err := appendItem([]byte(`<rss version="2.0"><channel><title>x</title`), "t", "l")
	assert.Error(t, err)

	_, err = appendItem([]byte(`<?xml version="1.0"?><feed/>`), "t", "l")
	assert.ErrorIs(t, err, errNoChannel)

	_, err = appendItem([]byte(`<rss version="2.0"/>`), "t", "l")
	assert.ErrorIs(t, err, errNoChannel)
}
