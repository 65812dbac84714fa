package extractor

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/dirscrape/models"
)

// Strategy contributes fields to a record from one parsed document.
//
// Strategies only add or overwrite keys, never delete them. A returned error
// marks an unexpected fault: it is logged and the remaining strategies still run.
// New directory sources are supported by adding a Strategy.
type Strategy interface {
	Name() string
	Apply(doc *goquery.Document, rec *models.Record) error
}
