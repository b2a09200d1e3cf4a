// Package ingest parses raw transaction report text into structured
// transactions. Reports arrive as concatenated blocks, each opened by a
// "Transaction ID:" line; a malformed block is skipped, never fatal to its
// siblings.
package ingest

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"finrisk/internal/entity"
	"finrisk/internal/pipeline"
)

var (
	txnIDPattern    = regexp.MustCompile(`Transaction ID: ([\w-]+)`)
	datePattern     = regexp.MustCompile(`Date:?\s*(\d{4}-\d{2}-\d{2}(?:\s+\d{2}:\d{2}:\d{2})?)`)
	senderPattern   = regexp.MustCompile(`(?s)Sender:.*?(Receiver:|$)`)
	receiverPattern = regexp.MustCompile(`(?s)Receiver:.*?(Amount:|$)`)
	amountPattern   = regexp.MustCompile(`Amount:\s*\$?([\d,]+\.?\d*)\s*\((\w+)\)`)
	notesPattern    = regexp.MustCompile(`(?s)Additional Notes:(.*?)(\n\w+:|$)`)

	namePattern    = regexp.MustCompile(`Name:?\s*["']?(.*?)["']?(\n|$)`)
	accountPattern = regexp.MustCompile(`Account:?\s*([^\n]+)`)
	addressPattern = regexp.MustCompile(`(?s)Address:?(.*?)(\n\w+:|$)`)

	blockStart = regexp.MustCompile(`Transaction ID: `)
)

// Parser splits report text into transaction blocks and extracts the
// structured fields of each.
type Parser struct {
	logger *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger used for skipped-block reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		p.logger = logger
	}
}

// NewParser builds a report parser.
func NewParser(opts ...Option) *Parser {
	p := &Parser{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse returns every well-formed transaction in content. Blocks without a
// transaction ID get a generated one; blocks without any sender or receiver
// name are dropped with a warning.
func (p *Parser) Parse(content string) []pipeline.Transaction {
	var out []pipeline.Transaction
	for _, block := range splitBlocks(content) {
		tx, ok := p.parseBlock(block)
		if !ok {
			p.logger.Warn("skipping unparseable transaction block",
				"prefix", prefix(block, 60),
			)
			continue
		}
		out = append(out, tx)
	}
	return out
}

// splitBlocks cuts content ahead of each "Transaction ID:" marker, keeping
// the marker with its block.
func splitBlocks(content string) []string {
	starts := blockStart.FindAllStringIndex(content, -1)
	if len(starts) == 0 {
		if strings.TrimSpace(content) == "" {
			return nil
		}
		return []string{content}
	}

	var blocks []string
	if head := content[:starts[0][0]]; strings.TrimSpace(head) != "" {
		blocks = append(blocks, head)
	}
	for i, s := range starts {
		end := len(content)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		blocks = append(blocks, content[s[0]:end])
	}
	return blocks
}

func (p *Parser) parseBlock(block string) (pipeline.Transaction, bool) {
	tx := pipeline.Transaction{Raw: strings.TrimSpace(block)}

	if m := txnIDPattern.FindStringSubmatch(block); m != nil {
		tx.ID = m[1]
	} else {
		tx.ID = uuid.NewString()
	}

	if m := datePattern.FindStringSubmatch(block); m != nil {
		tx.Date = parseDate(m[1])
	}

	if m := senderPattern.FindString(block); m != "" {
		tx.Sender = parseParty(m)
	}
	if m := receiverPattern.FindString(block); m != "" {
		tx.Receiver = parseParty(m)
	}

	if m := amountPattern.FindStringSubmatch(block); m != nil {
		value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err == nil {
			tx.Amount = pipeline.Money{Value: value, Currency: m[2]}
		}
	}

	if m := notesPattern.FindStringSubmatch(block); m != nil {
		tx.Notes = strings.TrimSpace(m[1])
	}

	if tx.Sender.Name == "" && tx.Receiver.Name == "" {
		return pipeline.Transaction{}, false
	}
	return tx, true
}

func parseParty(text string) pipeline.Party {
	var party pipeline.Party

	if m := namePattern.FindStringSubmatch(text); m != nil {
		party.Name = strings.TrimSpace(m[1])
	}
	if m := accountPattern.FindStringSubmatch(text); m != nil {
		party.Account = strings.TrimSpace(m[1])
	}
	if m := addressPattern.FindStringSubmatch(text); m != nil {
		if line := strings.TrimSpace(m[1]); line != "" {
			party.Address = &entity.Address{Street: line}
		}
	}
	return party
}

func parseDate(s string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func prefix(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
