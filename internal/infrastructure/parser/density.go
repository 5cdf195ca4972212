package parser

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	boilerplateSelector = "script, style, noscript, template, iframe, svg, canvas, form, button, input, select, textarea, nav, header, footer, aside"
	noiseSelector       = "[role='navigation'], [role='banner'], [role='contentinfo'], [aria-hidden='true'], [class*='comment'], [id*='comment'], [class*='share'], [class*='social'], [class*='related'], [class*='sidebar'], [class*='newsletter'], [class*='advert']"
	blockSelector       = "article, main, section, div, td, body"
	prunableSelector    = "ul, ol, div, section, table, p"

	minBlockTextChars  = 80
	semanticBlockBoost = 1.25
	maxLinkDensity     = 0.5
)

// ErrNoDenseBlock is returned when no block holds enough text.
var ErrNoDenseBlock = errors.New("no text-dense block found")

type blockStats struct {
	text int
	link int
	tags int
}

func (b blockStats) linkDensity() float64 {
	if b.text == 0 {
		return 1
	}
	return float64(b.link) / float64(b.text)
}

// score weighs non-link text per tag by the log of the non-link text length, so
// that dense blocks win over wrappers that also carry navigation markup.
func (b blockStats) score() float64 {
	plain := b.text - b.link
	if plain <= 0 {
		return 0
	}
	density := float64(plain) / float64(b.tags+1)
	return density * math.Log1p(float64(plain))
}

// DenseBlockHTML returns the outer HTML of the block with the highest text density.
func DenseBlockHTML(pageHTML string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}

	doc.Find(boilerplateSelector).Remove()
	doc.Find(noiseSelector).Not("body, article, main").Remove()

	var (
		best      *goquery.Selection
		bestScore float64
	)
	doc.Find(blockSelector).Each(func(_ int, sel *goquery.Selection) {
		stats := measure(sel)
		if stats.text-stats.link < minBlockTextChars {
			return
		}
		score := stats.score()
		switch goquery.NodeName(sel) {
		case "article", "main":
			score *= semanticBlockBoost
		}
		if score > bestScore {
			best, bestScore = sel, score
		}
	})
	if best == nil {
		return "", ErrNoDenseBlock
	}

	pruneLinkLists(best)

	out, err := goquery.OuterHtml(best)
	if err != nil {
		return "", fmt.Errorf("render block: %w", err)
	}
	return out, nil
}

func measure(sel *goquery.Selection) blockStats {
	stats := blockStats{
		text: textLen(sel.Text()),
		tags: sel.Find("*").Length(),
	}
	sel.Find("a").Each(func(_ int, a *goquery.Selection) {
		stats.link += textLen(a.Text())
	})
	return stats
}

// pruneLinkLists drops descendants that are mostly links (menus, tag clouds).
func pruneLinkLists(block *goquery.Selection) {
	block.Find(prunableSelector).Each(func(_ int, sel *goquery.Selection) {
		stats := measure(sel)
		if stats.text > 0 && stats.linkDensity() > maxLinkDensity {
			sel.Remove()
		}
	})
}

func textLen(s string) int {
	return len([]rune(strings.Join(strings.Fields(s), " ")))
}
