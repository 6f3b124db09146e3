package advisor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/tbourn/carlog-backend/internal/config"
	"github.com/tbourn/carlog-backend/internal/domain"
)

type fakeChat struct {
	req  openai.ChatCompletionRequest
	resp openai.ChatCompletionResponse
	err  error
}

func (f *fakeChat) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	return f.resp, f.err
}

func testVehicle() domain.Vehicle {
	m := 61250
	return domain.Vehicle{
		ID: "v1", Brand: "Honda", Model: "Civic", Year: 2019, Trim: "EX",
		VIN: "1HGBH41JXMN109186", LicensePlate: "ABC123", LicenseState: "CA",
		ZipCode: "94107", UsagePattern: "daily_commute", UsageNotes: "Mostly highway",
		CurrentMileage: &m,
	}
}

func testHistory() []domain.MaintenanceRecord {
	cost := 1234.5
	return []domain.MaintenanceRecord{
		{ServiceType: "Oil Change", Mileage: 50000, ServiceDate: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)},
		{ServiceType: "Brakes", Mileage: 60000, ServiceDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Cost: &cost, ServiceProvider: "Joe's"},
	}
}

func TestBuildPrompt_VehicleInfo(t *testing.T) {
	p, err := BuildPrompt(testVehicle(), nil)
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	for _, want := range []string{
		"Vehicle: 2019 Honda Civic EX",
		"Current Mileage: 61,250 miles",
		"Usage Type: Daily Commute",
		"VIN: 1HGBH41JXMN109186",
		"License: CA ABC123",
		"Location (ZIP): 94107",
		"Owner Notes: Mostly highway",
		"No maintenance records available",
		"5. Model-Specific Recommendations: Include any known issues for this 2019 Honda Civic.",
	} {
		if !strings.Contains(p, want) {
			t.Fatalf("prompt missing %q:\n%s", want, p)
		}
	}
}

func TestBuildPrompt_OmitsUnknownFields(t *testing.T) {
	p, err := BuildPrompt(domain.Vehicle{Brand: "Ford", Model: "F-150", Year: 2015}, nil)
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	for _, absent := range []string{"Current Mileage", "VIN:", "License:", "Usage Type"} {
		if strings.Contains(p, absent) {
			t.Fatalf("prompt should not contain %q", absent)
		}
	}
}

func TestBuildPrompt_HistoryNewestFirst(t *testing.T) {
	p, err := BuildPrompt(testVehicle(), testHistory())
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	brakes := strings.Index(p, "2024-02-01 | 60,000 | Brakes | N/A | $1,234.50 | Joe's")
	oil := strings.Index(p, "2023-06-01 | 50,000 | Oil Change | N/A | N/A | N/A")
	if brakes < 0 || oil < 0 {
		t.Fatalf("rows not rendered as expected:\n%s", p)
	}
	if brakes > oil {
		t.Fatalf("history must be newest first")
	}
}

func TestNew_RequiresKey(t *testing.T) {
	if _, err := New(config.AdvisorConfig{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
	a, err := New(config.AdvisorConfig{APIKey: "sk-test", BaseURL: "http://localhost:1/v1", Model: "gpt-4o-mini", MaxTokens: 512})
	if err != nil || a.model != "gpt-4o-mini" || a.maxTokens != 512 {
		t.Fatalf("a=%+v err=%v", a, err)
	}
}

func TestCompute_Success(t *testing.T) {
	fc := &fakeChat{resp: openai.ChatCompletionResponse{
		Model:   "gpt-4o-mini-2024",
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "  1. Rotate tires  "}}},
		Usage:   openai.Usage{TotalTokens: 321},
	}}
	a := &Advisor{client: fc, model: "gpt-4o-mini", maxTokens: 256, timeout: time.Second}

	comp, err := a.Compute(context.Background(), testVehicle(), testHistory())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if comp.Text != "1. Rotate tires" || comp.Model != "gpt-4o-mini-2024" {
		t.Fatalf("comp = %+v", comp)
	}
	if comp.TokensUsed == nil || *comp.TokensUsed != 321 {
		t.Fatalf("tokens = %v", comp.TokensUsed)
	}
	if comp.Prompt == "" || !strings.Contains(comp.RawResponse, "Rotate tires") {
		t.Fatalf("prompt/raw not captured: %+v", comp)
	}
	if len(fc.req.Messages) != 2 || fc.req.Messages[0].Role != openai.ChatMessageRoleSystem || fc.req.MaxTokens != 256 {
		t.Fatalf("unexpected request: %+v", fc.req)
	}
}

func TestCompute_ErrorKeepsPrompt(t *testing.T) {
	a := &Advisor{client: &fakeChat{err: errors.New("429")}, model: "m"}
	comp, err := a.Compute(context.Background(), testVehicle(), nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if comp.Prompt == "" || comp.Text != "" {
		t.Fatalf("comp = %+v", comp)
	}
}

func TestCompute_EmptyCompletion(t *testing.T) {
	a := &Advisor{client: &fakeChat{resp: openai.ChatCompletionResponse{}}, model: "m"}
	comp, err := a.Compute(context.Background(), testVehicle(), nil)
	if err == nil {
		t.Fatalf("expected error for empty completion")
	}
	if comp.RawResponse == "" {
		t.Fatalf("raw response should be captured for audit")
	}
}
