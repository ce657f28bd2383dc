package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/list"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/feedback-triage/internal/db"
	"github.com/david/feedback-triage/internal/products"
)

type rankRow struct {
	Title    string
	Score    float64
	Feedback int
	Horizon  string
	Status   string
}

func renderRanking(w io.Writer, rows []rankRow, maxScore float64) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Title", "Score", "Feedback", "Horizon", "Status"})
	for i, r := range rows {
		t.AppendRow(table.Row{i + 1, r.Title, fmt.Sprintf("%.1f", r.Score), r.Feedback, r.Horizon, r.Status})
	}
	t.AppendFooter(table.Row{"", "max possible", fmt.Sprintf("%.1f", maxScore), "", "", ""})
	t.Render()
}

func renderProductTree(w io.Writer, roots []*products.Node, rollup map[uuid.UUID]products.Counts) {
	if len(roots) == 0 {
		fmt.Fprintln(w, "no products")
		return
	}
	l := list.NewWriter()
	l.SetOutputMirror(w)
	l.SetStyle(list.StyleConnectedRounded)

	var walk func(nodes []*products.Node)
	walk = func(nodes []*products.Node) {
		for _, n := range nodes {
			c := rollup[n.ID]
			l.AppendItem(fmt.Sprintf("%s (%d feedback, %d opportunities)", n.Name, c.Feedback, c.Opportunities))
			if len(n.Children) > 0 {
				l.Indent()
				walk(n.Children)
				l.UnIndent()
			}
		}
	}
	walk(roots)
	l.Render()
	fmt.Fprintln(w)
}

func renderStats(w io.Writer, s *db.Stats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Metric", "Count"})
	for _, r := range []struct {
		name  string
		value int
	}{
		{"feedback", s.Feedback},
		{"feedback new", s.FeedbackNew},
		{"feedback reviewed", s.FeedbackReviewed},
		{"feedback rejected", s.FeedbackRejected},
		{"feedback unassigned", s.FeedbackUnassigned},
		{"opportunities", s.Opportunities},
		{"features", s.Features},
		{"products", s.Products},
		{"imports", s.Imports},
		{"dimensions", s.Dimensions},
	} {
		t.AppendRow(table.Row{strings.ToUpper(r.name[:1]) + r.name[1:], r.value})
	}
	t.Render()
}
