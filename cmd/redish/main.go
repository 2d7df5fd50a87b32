package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		logrus.WithError(err).Error("redish failed")
		os.Exit(1)
	}
}
