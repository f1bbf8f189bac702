// Package mpesaparser extracts structured transactions from MPESA
// confirmation messages using an ordered table of text templates.
package mpesaparser

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"fjacquet/sms-ledger/internal/currencyutils"
	"fjacquet/sms-ledger/internal/dateutils"
	"fjacquet/sms-ledger/internal/logging"
	"fjacquet/sms-ledger/internal/models"
	"fjacquet/sms-ledger/internal/parser"
	"fjacquet/sms-ledger/internal/parsererror"
	"fjacquet/sms-ledger/internal/phoneutils"
)

// Parse error texts.
const (
	ErrInvalidText         = "message is not valid text"
	ErrNoMatchingPattern   = "no matching pattern"
	ErrUnresolvedTimestamp = "unresolved timestamp"
)

// ConfidenceWeights is the additive scoring policy. The sum is capped at 1.
type ConfidenceWeights struct {
	Base      float64
	Amount    float64
	Code      float64
	Timestamp float64
	Name      float64
}

// DefaultWeights returns the stock scoring policy.
func DefaultWeights() ConfidenceWeights {
	return ConfidenceWeights{
		Base:      0.5,
		Amount:    0.2,
		Code:      0.2,
		Timestamp: 0.1,
		Name:      0.1,
	}
}

// Parser is the MPESA extractor. It holds no mutable state after
// construction and may be shared across goroutines.
type Parser struct {
	parser.BaseParser
	provider    string
	brandTokens []string
	templates   []Template
	weights     ConfidenceWeights
	phones      *phoneutils.Normalizer
	resolver    *dateutils.Resolver
}

var _ parser.Extractor = (*Parser)(nil)

// Option configures a Parser.
type Option func(*Parser)

// WithWeights replaces the confidence policy.
func WithWeights(w ConfidenceWeights) Option {
	return func(p *Parser) { p.weights = w }
}

// WithBrandTokens replaces the candidacy tokens. Matching is case-insensitive.
func WithBrandTokens(tokens ...string) Option {
	return func(p *Parser) {
		p.brandTokens = nil
		for _, t := range tokens {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				p.brandTokens = append(p.brandTokens, t)
			}
		}
	}
}

// WithPhoneNormalizer sets the numbering plan for captured phone numbers.
func WithPhoneNormalizer(n *phoneutils.Normalizer) Option {
	return func(p *Parser) { p.phones = n }
}

// WithResolver sets the zone used to resolve message timestamps.
func WithResolver(r *dateutils.Resolver) Option {
	return func(p *Parser) { p.resolver = r }
}

// WithProvider renames the provider stamped on drafts.
func WithProvider(name string) Option {
	return func(p *Parser) { p.provider = name }
}

// NewParser creates an MPESA extractor with the Kenyan defaults.
func NewParser(logger logging.Logger, opts ...Option) *Parser {
	p := &Parser{
		BaseParser:  parser.NewBaseParser(logger),
		provider:    models.ProviderMPESA,
		brandTokens: []string{"mpesa", "m-pesa"},
		templates:   DefaultTemplates,
		weights:     DefaultWeights(),
		phones:      phoneutils.NewNormalizer("254", "7"),
		resolver:    dateutils.NewResolver(nil),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Provider names the network this parser understands.
func (p *Parser) Provider() string {
	return p.provider
}

// IsCandidate reports whether the sender or body carries a brand token.
func (p *Parser) IsCandidate(body, senderHint string) bool {
	sender := strings.ToLower(senderHint)
	text := strings.ToLower(body)
	for _, token := range p.brandTokens {
		if strings.Contains(sender, token) || strings.Contains(text, token) {
			return true
		}
	}
	return false
}

// Parse extracts a draft from body. It never fails: every problem is
// recorded in the draft's ParseErrors and reflected in its confidence.
func (p *Parser) Parse(body, senderHint string) models.Draft {
	draft := models.Draft{ParseErrors: []string{}}

	if !utf8.ValidString(body) {
		draft.ParseErrors = append(draft.ParseErrors, ErrInvalidText)
		return draft
	}

	if !p.IsCandidate(body, senderHint) {
		draft.ParseErrors = append(draft.ParseErrors, fmt.Sprintf("not a %s message", p.provider))
		return draft
	}
	draft.Provider = p.provider

	for _, tmpl := range p.templates {
		match := tmpl.Pattern.FindStringSubmatch(body)
		if match == nil {
			continue
		}
		p.fill(&draft, tmpl, captures(tmpl.Pattern, match))
		return draft
	}

	draft.ParseErrors = append(draft.ParseErrors, ErrNoMatchingPattern)
	return draft
}

func (p *Parser) fill(draft *models.Draft, tmpl Template, groups map[string]string) {
	logger := p.GetLogger().WithField("template", tmpl.Tag)

	direction := tmpl.Direction
	draft.Direction = &direction
	draft.Template = tmpl.Tag

	if raw := groups["amount"]; raw != "" {
		amount, err := currencyutils.ParseAmount(raw)
		if err != nil {
			draft.ParseErrors = append(draft.ParseErrors, fmt.Sprintf("invalid amount format: %s", raw))
			logger.WithError(&parsererror.ParseError{Parser: p.Provider(), Field: "amount", Value: raw, Err: err}).
				Debug("Amount not parsed")
		} else {
			draft.Amount = &amount
		}
	}

	if name := strings.TrimSpace(groups["name"]); name != "" {
		draft.CounterpartyName = &name
	}

	if raw := groups["phone"]; raw != "" {
		phone := p.phones.Normalize(raw)
		draft.CounterpartyPhone = phone.Value
		if len(phone.Issues) > 0 {
			logger.Debug("Unusual counterparty phone", logging.F("issues", phone.Issues))
		}
	}

	if code := strings.ToUpper(groups["code"]); code != "" {
		draft.TransactionCode = &code
	}

	draft.RawDate = groups["date"]
	draft.RawTime = groups["time"]
	resolved := p.resolver.Resolve(draft.RawDate, draft.RawTime)
	if resolved.Value != nil {
		draft.OccurredAtLocal = resolved.Value
	} else {
		draft.ParseErrors = append(draft.ParseErrors, ErrUnresolvedTimestamp)
		logger.Debug("Could not resolve message timestamp", logging.F("issues", resolved.Issues))
	}

	draft.Confidence = p.score(*draft)
}

func (p *Parser) score(d models.Draft) float64 {
	w := p.weights
	confidence := w.Base
	if d.Amount != nil {
		confidence += w.Amount
	}
	if d.TransactionCode != nil {
		confidence += w.Code
	}
	if d.OccurredAtLocal != nil {
		confidence += w.Timestamp
	}
	if d.CounterpartyName != nil {
		confidence += w.Name
	}
	confidence = math.Round(confidence*100) / 100
	return math.Max(0, math.Min(confidence, 1.0))
}
