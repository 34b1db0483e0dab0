// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package transform turns the located blocks of one record into a
// publication row plus the author and affiliation occurrences it carries,
// assigning surrogate ids from the run's counters.
package transform

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/medline2sql/internal/classify"
	"github.com/pdiddy/medline2sql/internal/extract"
	"github.com/pdiddy/medline2sql/internal/xmltree"
	"github.com/pdiddy/medline2sql/pkg/types"
)

// ErrMissingKey is returned for records without a PMID or PMID version.
var ErrMissingKey = errors.New("record has no PMID or PMID version")

// FileBatch accumulates the author and affiliation occurrences of one file.
type FileBatch struct {
	Authors      []types.Author
	Affiliations []types.Affiliation
}

// Transformer interprets extracted blocks.
type Transformer struct {
	labeler classify.Labeler
	logger  *zap.Logger
}

// New returns a Transformer that buckets abstract sections with labeler.
func New(labeler classify.Labeler, logger *zap.Logger) *Transformer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transformer{labeler: labeler, logger: logger}
}

// Transform builds the publication row for one record and appends its
// authors and affiliations to batch. It returns the counters advanced past
// every id it assigned. On error batch is left untouched and the entry
// counters are returned.
func (t *Transformer) Transform(ctx context.Context, b extract.Blocks, fileName string, ids types.Counters, batch *FileBatch) (types.Row, types.Counters, error) {
	entry := ids
	row := types.Row{}

	pmidNode := b.MedlineCitation.Find("PMID")
	pmid := strings.TrimSpace(pmidNode.Text())
	version, hasVersion := pmidNode.Attr("Version")
	if pmid == "" || !hasVersion {
		return nil, entry, ErrMissingKey
	}
	row[types.ColPMID] = pmid
	row["PMIDVersion"] = version

	setText(row, "GeneSymbol", b.GeneSymbol, "")
	setText(row, "CoiStatement", b.CoiStatement, "")
	setText(row, "PublicationStatus", b.PublicationStatus, "")
	if d, ok := dateOf(b.DateCompleted); ok {
		row["DateCompleted"] = d
	}

	otherAbstract(row, b.MedlineCitation)
	journal(row, b.Journal)

	var authors []types.Author
	var affiliations []types.Affiliation
	if b.Article != nil {
		if err := t.article(ctx, row, b.Article); err != nil {
			return nil, entry, fmt.Errorf("PMID %s: %w", pmid, err)
		}
		authors, affiliations, ids = t.authors(row, pmid, b.Article.Find("AuthorList"), ids)
	}

	history(row, b.PubmedData)
	medlineJournalInfo(row, b.MedlineJournalInfo)
	articleIDs(row, b.ArticleIDList)
	references(row, b.ReferenceLists)

	row["XML_file_name"] = fileName

	batch.Authors = append(batch.Authors, authors...)
	batch.Affiliations = append(batch.Affiliations, affiliations...)
	return row, ids, nil
}

func otherAbstract(row types.Row, citation *xmltree.Node) {
	other := citation.Find("OtherAbstract")
	if other == nil {
		return
	}
	setAttr(row, "OtherAbtractLanguage", other, "Language")
	setAttr(row, "OtherAbtractType", other, "Type")

	// Labels are in the abstract's own language, so sections are not
	// bucketed. Every section, empty ones included, is prefixed with ". ".
	var b strings.Builder
	for _, at := range other.FindAll("AbstractText") {
		b.WriteString(". ")
		b.WriteString(strings.TrimSpace(at.PlainText()))
	}
	row["OtherAbtract"] = b.String()
}

func journal(row types.Row, j *xmltree.Node) {
	if j == nil {
		return
	}
	if issn := j.Find("ISSN"); issn != nil {
		setText(row, "Journal_ISSN", issn, "")
		setAttr(row, "Journal_ISSN_Type", issn, "IssnType")
	}

	if issue := j.Find("JournalIssue"); issue != nil {
		setText(row, "Journal_JournalIssue_Volume", issue, "Volume")
		setText(row, "Journal_JournalIssue_Issue", issue, "Issue")
		setAttr(row, "Journal_JournalIssue_CitedMedium", issue, "CitedMedium")

		if pd := issue.Find("PubDate"); pd != nil {
			for _, part := range []string{"Year", "Month", "Day", "Season", "MedlineDate"} {
				setText(row, "Journal_JournalIssue_PubDate_"+part, pd, part)
			}
		}
	}

	setText(row, "Journal_Title", j, "Title")
	setText(row, "Journal_ISOAbbreviation", j, "ISOAbbreviation")
}

func (t *Transformer) article(ctx context.Context, row types.Row, a *xmltree.Node) error {
	if title := a.Find("ArticleTitle"); title != nil {
		row["ArticleTitle"] = CleanTitle(title.InnerXML())
	}
	setText(row, "Language", a, "Language")
	setAttr(row, "Article_PubModel", a, "PubModel")

	if d, ok := dateOf(a.Find("ArticleDate")); ok {
		row["ArticleDate"] = d
	}

	setText(row, "Article_MedlinePgn", a, "Pagination/MedlinePgn")
	setText(row, "Article_ELocationID", a, "ELocationID")

	for _, at := range a.FindAll("Abstract/AbstractText") {
		key, err := t.abstractKey(ctx, at)
		if err != nil {
			return err
		}
		row[key] = strings.TrimSpace(at.PlainText())
	}
	return nil
}

// abstractKey resolves the attribute name for one abstract section.
func (t *Transformer) abstractKey(ctx context.Context, at *xmltree.Node) (string, error) {
	label, _ := at.Attr("Label")
	if label == "" {
		return "Abstract", nil
	}
	winner, err := t.labeler.Label(ctx, label, classify.AbstractCandidates)
	if err != nil {
		return "", fmt.Errorf("classifying abstract label %q: %w", label, err)
	}
	return AbstractKey(winner), nil
}

// AbstractKey maps a winning candidate to its publication attribute.
func AbstractKey(candidate string) string {
	if candidate == classify.Unlabelled || candidate == "" {
		return "Abstract"
	}
	return "Abstract_" + candidate
}

// authors walks the author list in document order. Every author element
// consumes an author id, and every affiliation element of a named author
// consumes an affiliation id, whether or not the occurrence is kept.
func (t *Transformer) authors(row types.Row, pmid string, list *xmltree.Node, ids types.Counters) ([]types.Author, []types.Affiliation, types.Counters) {
	if list.Len() == 0 {
		return nil, nil, ids
	}

	total := list.Len()
	complete, _ := list.Attr("CompleteYN")
	recorded := []int64{}
	var authors []types.Author
	var affiliations []types.Affiliation

	for i, el := range list.Children {
		ids.Author++
		order := i + 1

		au := types.Author{
			PMID:       pmid,
			AuthorID:   ids.Author,
			LastName:   optText(el, "LastName"),
			ForeName:   optText(el, "ForeName"),
			Initials:   optText(el, "Initials"),
			Order:      order,
			IsFirst:    order == 1,
			IsLast:     order == total,
			NumAuthors: total,
		}
		if !au.HasName() {
			t.logger.Debug("skipping author without name parts",
				zap.String("pmid", pmid), zap.Int("order", order), zap.Int64("author_id", au.AuthorID))
			continue
		}

		affs := el.FindAll("AffiliationInfo/Affiliation")
		if len(affs) == 0 {
			au.NoAffiliation = true
		}
		for _, aff := range affs {
			ids.Affiliation++
			affiliations = append(affiliations, types.Affiliation{ID: ids.Affiliation, Text: aff.PlainText()})
			au.AffiliationIDs = append(au.AffiliationIDs, ids.Affiliation)
		}

		authors = append(authors, au)
		recorded = append(recorded, au.AuthorID)
	}

	row["CompleteYN"] = complete
	row["AuthorList"] = recorded
	row["Num_Authors"] = int64(total)
	return authors, affiliations, ids
}

func history(row types.Row, pubmedData *xmltree.Node) {
	for _, d := range pubmedData.FindAll("History/PubMedPubDate") {
		status, _ := d.Attr("PubStatus")
		if status == "" {
			continue
		}
		if date, ok := dateOf(d); ok {
			row["History_"+status] = date
		}
	}
}

func medlineJournalInfo(row types.Row, info *xmltree.Node) {
	if info == nil {
		return
	}
	for _, field := range []string{"Country", "MedlineTA", "NlmUniqueID", "ISSNLinking"} {
		setText(row, "MedlineJournalInfo_"+field, info, field)
	}
}

func articleIDs(row types.Row, list *xmltree.Node) {
	for _, id := range list.FindAll("ArticleId") {
		idType, _ := id.Attr("IdType")
		value := strings.TrimSpace(id.Text())
		if idType != "" && value != "" {
			row["ArticleId_"+idType] = value
		}
	}
}

func references(row types.Row, lists []*xmltree.Node) {
	if len(lists) == 0 {
		return
	}
	refs := []string{}
	for _, list := range lists {
		for _, id := range list.FindAll("*") {
			refs = append(refs, strings.TrimSpace(id.Text()))
		}
	}
	row["ReferenceList"] = refs
}
