// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract locates the logical blocks of one PubmedArticle record.
// It does not read text or validate anything; the transform package
// interprets what is found here.
package extract

import "github.com/pdiddy/medline2sql/internal/xmltree"

// RecordElement is the name of the per-record root element.
const RecordElement = "PubmedArticle"

// Blocks holds the located sub-elements of one record. Any field may be nil
// or empty when the record lacks that block.
type Blocks struct {
	DateCompleted      *xmltree.Node
	ReferenceLists     []*xmltree.Node
	PublicationStatus  *xmltree.Node
	MedlineCitation    *xmltree.Node
	PubmedData         *xmltree.Node
	CoiStatement       *xmltree.Node
	MedlineJournalInfo *xmltree.Node
	Journal            *xmltree.Node
	ArticleIDList      *xmltree.Node
	DataBankList       *xmltree.Node
	OtherIDs           []*xmltree.Node
	Article            *xmltree.Node
	GeneSymbol         *xmltree.Node
}

// Extract returns the blocks of article. A nil article yields empty Blocks.
func Extract(article *xmltree.Node) Blocks {
	return Blocks{
		DateCompleted:      article.Find(".//DateCompleted"),
		ReferenceLists:     article.FindAll(".//ReferenceList//ArticleIdList"),
		PublicationStatus:  article.Find(".//PublicationStatus"),
		MedlineCitation:    article.Find("MedlineCitation"),
		PubmedData:         article.Find(".//PubmedData"),
		CoiStatement:       article.Find(".//CoiStatement"),
		MedlineJournalInfo: article.Find(".//MedlineJournalInfo"),
		Journal:            article.Find(".//Journal"),
		ArticleIDList:      article.Find(".//PubmedData/ArticleIdList"),
		DataBankList:       article.Find(".//DataBankList"),
		OtherIDs:           article.FindAll(".//OtherID"),
		Article:            article.Find(".//Article"),
		GeneSymbol:         article.Find(".//GeneSymbol"),
	}
}
