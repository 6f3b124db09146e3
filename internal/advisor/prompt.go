package advisor

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/tbourn/carlog-backend/internal/domain"
)

//go:embed prompt/recommendation.yaml
var recommendationYAML []byte

// promptTemplate holds the fixed wording of the recommendation prompt.
type promptTemplate struct {
	System         string   `yaml:"system"`
	Intro          string   `yaml:"intro"`
	HistoryHeading string   `yaml:"history_heading"`
	EmptyHistory   string   `yaml:"empty_history"`
	TableHeader    string   `yaml:"table_header"`
	FormatHeading  string   `yaml:"format_heading"`
	Sections       []string `yaml:"sections"`
	Closing        string   `yaml:"closing"`
}

var loadTemplate = sync.OnceValues(func() (promptTemplate, error) {
	var t promptTemplate
	if err := yaml.Unmarshal(recommendationYAML, &t); err != nil {
		return t, fmt.Errorf("parse prompt yaml: %w", err)
	}
	if t.Intro == "" || len(t.Sections) == 0 {
		return t, fmt.Errorf("prompt yaml: intro and sections required")
	}
	return t, nil
})

var (
	printer = message.NewPrinter(language.English)
	titler  = cases.Title(language.English)
)

// usageLabel turns "daily_commute" into "Daily Commute".
func usageLabel(p string) string {
	return titler.String(strings.ReplaceAll(p, "_", " "))
}

// vehicleInfo renders the known vehicle attributes, one per line.
func vehicleInfo(v domain.Vehicle) string {
	var b strings.Builder
	desc := v.DisplayName()
	if v.Trim != "" {
		desc += " " + v.Trim
	}
	fmt.Fprintf(&b, "Vehicle: %s\n", desc)
	if v.CurrentMileage != nil && *v.CurrentMileage > 0 {
		b.WriteString(printer.Sprintf("Current Mileage: %d miles\n", *v.CurrentMileage))
	}
	if v.UsagePattern != "" {
		fmt.Fprintf(&b, "Usage Type: %s\n", usageLabel(v.UsagePattern))
	}
	if v.VIN != "" {
		fmt.Fprintf(&b, "VIN: %s\n", v.VIN)
	}
	if v.LicensePlate != "" {
		plate := v.LicensePlate
		if v.LicenseState != "" {
			plate = v.LicenseState + " " + plate
		}
		fmt.Fprintf(&b, "License: %s\n", plate)
	}
	if v.ZipCode != "" {
		fmt.Fprintf(&b, "Location (ZIP): %s\n", v.ZipCode)
	}
	if v.UsageNotes != "" {
		fmt.Fprintf(&b, "Owner Notes: %s\n", v.UsageNotes)
	}
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// maintenanceTable renders history newest service first.
func maintenanceTable(t promptTemplate, records []domain.MaintenanceRecord) string {
	if len(records) == 0 {
		return t.EmptyHistory + "\n"
	}
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b domain.MaintenanceRecord) int {
		return b.ServiceDate.Compare(a.ServiceDate)
	})

	var b strings.Builder
	b.WriteString(t.TableHeader + "\n")
	b.WriteString(strings.Repeat("-", 90) + "\n")
	for _, r := range sorted {
		mileage := "N/A"
		if r.Mileage > 0 {
			mileage = printer.Sprintf("%d", r.Mileage)
		}
		cost := "N/A"
		if r.Cost != nil && *r.Cost > 0 {
			cost = printer.Sprintf("$%.2f", *r.Cost)
		}
		fmt.Fprintf(&b, "%s | %s | %s | %s | %s | %s\n",
			r.ServiceDate.Format("2006-01-02"), mileage, r.ServiceType,
			orNA(r.Description), cost, orNA(r.ServiceProvider))
	}
	return b.String()
}

// BuildPrompt renders the user prompt for v and its history.
func BuildPrompt(v domain.Vehicle, history []domain.MaintenanceRecord) (string, error) {
	t, err := loadTemplate()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(t.Intro + "\n\n")
	b.WriteString(vehicleInfo(v))
	b.WriteString("\n" + t.HistoryHeading + "\n")
	b.WriteString(maintenanceTable(t, history))
	b.WriteString("\n" + t.FormatHeading + "\n")
	for i, s := range t.Sections {
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.ReplaceAll(s, "{vehicle}", v.DisplayName()))
	}
	b.WriteString("\n" + t.Closing)
	return b.String(), nil
}

// SystemPrompt returns the advisor persona.
func SystemPrompt() (string, error) {
	t, err := loadTemplate()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(t.System), nil
}
