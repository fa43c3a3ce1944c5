package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/username/finwatch/src/ledger"
	"github.com/username/finwatch/src/logger"
	"github.com/username/finwatch/src/renderer"
	"github.com/yuin/goldmark"
	"google.golang.org/genai"
)

// Suggestion is the assistant card shown on the dashboard.
type Suggestion struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Action  string `json:"action"`
	Link    string `json:"link"`
}

var (
	suggestExpenses = Suggestion{
		Title:   "Start Expense Tracking",
		Message: "Begin by adding your daily expenses to get insights into your spending patterns.",
		Action:  "Go to Expenses",
		Link:    "/expenses",
	}
	suggestPortfolio = Suggestion{
		Title:   "Build Your Portfolio",
		Message: "Add stocks to your watchlist and track market performance in real-time.",
		Action:  "Explore Stocks",
		Link:    "/portfolio",
	}
	suggestTransactions = Suggestion{
		Title:   "Track Income & Expenses",
		Message: "Record your income and expenses to see your financial flow.",
		Action:  "Add Transactions",
		Link:    "/transactions",
	}
)

// Suggest picks the next step for a user: record spending first, then
// build a watchlist, then keep logging transactions.
func Suggest(st ledger.Stats) Suggestion {
	switch {
	case st.TransactionCount == 0 && st.TotalExpenses.IsZero():
		return suggestExpenses
	case st.WatchlistCount == 0:
		return suggestPortfolio
	default:
		return suggestTransactions
	}
}

// Insight is an assistant commentary in markdown and sanitized HTML.
type Insight struct {
	Suggestion Suggestion `json:"suggestion"`
	Markdown   string     `json:"markdown"`
	HTML       string     `json:"html"`
	Generated  bool       `json:"generated"`
}

type AssistantService struct {
	ledger    *LedgerService
	generator InsightGenerator
	currency  string
	policy    *bluemonday.Policy
}

// NewAssistantService builds the assistant. generator may be nil, in which
// case insights are the plain spending report.
func NewAssistantService(ledgerSvc *LedgerService, generator InsightGenerator, currency string) *AssistantService {
	if currency == "" {
		currency = ledger.DefaultCurrency
	}
	return &AssistantService{ledger: ledgerSvc, generator: generator, currency: currency, policy: bluemonday.UGCPolicy()}
}

func (s *AssistantService) Insight(ctx context.Context, owner string) (*Insight, error) {
	st, err := s.ledger.Stats(ctx, owner)
	if err != nil {
		return nil, err
	}
	sum, err := s.ledger.Summary(ctx, owner)
	if err != nil {
		return nil, err
	}
	sp, err := s.ledger.Spending(ctx, owner)
	if err != nil {
		return nil, err
	}
	report := renderer.SpendingReport(sum, st, sp, s.currency)
	out := &Insight{Suggestion: Suggest(st), Markdown: report}

	if s.generator != nil && st.TransactionCount+st.ExpenseCount > 0 {
		text, err := s.generator.Generate(ctx, insightPrompt+report)
		if err != nil {
			logger.FromContext(ctx).Warn("Assistant insight generation failed, returning plain report", "error", err)
		} else if strings.TrimSpace(text) != "" {
			out.Markdown = text
			out.Generated = true
		}
	}

	out.HTML, err = s.render(out.Markdown)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *AssistantService) render(md string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("render insight markdown: %w", err)
	}
	return s.policy.Sanitize(buf.String()), nil
}

const insightPrompt = `You are a personal finance assistant. Using only the report below, give
three short, concrete observations about the user's spending and one
suggestion. Answer in markdown, under 150 words, without restating the table.

`

// GeminiGenerator produces insights with the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, ErrAssistantOffline
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("initialize gemini client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return resp.Text(), nil
}
