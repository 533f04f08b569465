package tool

import (
	"context"
	"encoding/json"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"service-ninja/internal/domain"
	"service-ninja/internal/usecase/dates"
)

// DateTools expose calendar helpers as callable tools.
type DateTools struct {
	logger *slog.Logger
}

// NewDateTools creates the date tool set.
func NewDateTools(logger *slog.Logger) *DateTools {
	return &DateTools{logger: logger}
}

// Tools returns every date tool for registration.
func (t *DateTools) Tools() []domain.Tool {
	return []domain.Tool{
		newTool("get_current_date",
			"Return the current date with weekday, day of year and ISO week metadata.",
			json.RawMessage(`{
				"type": "object",
				"properties": {}
			}`),
			t.logger, t.handleCurrentDate),

		newTool("calculate_relative_date",
			"Resolve a natural-language date expression like 'next friday' or 'in 3 days'.",
			json.RawMessage(`{
				"type": "object",
				"properties": {
					"expression": {"type": "string", "description": "Expression such as 'tomorrow', 'next monday', 'in 2 weeks', '3 days ago' or 'Dec 25'"},
					"reference_date": {"type": "string", "description": "Anchor date in YYYY-MM-DD form, defaults to today"}
				},
				"required": ["expression"]
			}`),
			t.logger, t.handleRelativeDate),

		newTool("get_business_days_between",
			"Count business days between two dates, optionally excluding US holidays.",
			json.RawMessage(`{
				"type": "object",
				"properties": {
					"start_date": {"type": "string", "description": "Start date in YYYY-MM-DD form"},
					"end_date": {"type": "string", "description": "End date in YYYY-MM-DD form"},
					"exclude_holidays": {"type": "boolean", "description": "Skip US federal holidays, defaults to true"}
				},
				"required": ["start_date", "end_date"]
			}`),
			t.logger, t.handleBusinessDays),

		newTool("format_date_range",
			"Format a date range in short, medium and long styles with its duration.",
			json.RawMessage(`{
				"type": "object",
				"properties": {
					"start_date": {"type": "string", "description": "Start date in YYYY-MM-DD form"},
					"end_date": {"type": "string", "description": "End date in YYYY-MM-DD form"}
				},
				"required": ["start_date", "end_date"]
			}`),
			t.logger, t.handleDateRange),
	}
}

type currentDateParams struct{}

func (t *DateTools) handleCurrentDate(_ context.Context, _ trace.Span, _ currentDateParams) (any, error) {
	return dates.Now(), nil
}

type relativeDateParams struct {
	Expression    string `json:"expression"`
	ReferenceDate string `json:"reference_date"`
}

func (t *DateTools) handleRelativeDate(_ context.Context, _ trace.Span, p relativeDateParams) (any, error) {
	if err := RequireField("expression", p.Expression); err != nil {
		return nil, err
	}
	rel, err := dates.CalculateRelativeDate(p.Expression, p.ReferenceDate)
	if err != nil {
		return ErrResult("%v", err)
	}
	return rel, nil
}

type businessDaysParams struct {
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	ExcludeHolidays *bool  `json:"exclude_holidays"`
}

func (t *DateTools) handleBusinessDays(_ context.Context, _ trace.Span, p businessDaysParams) (any, error) {
	if err := RequireField("start_date", p.StartDate); err != nil {
		return nil, err
	}
	if err := RequireField("end_date", p.EndDate); err != nil {
		return nil, err
	}
	excludeHolidays := true
	if p.ExcludeHolidays != nil {
		excludeHolidays = *p.ExcludeHolidays
	}
	days, err := dates.BusinessDaysBetween(p.StartDate, p.EndDate, excludeHolidays)
	if err != nil {
		return ErrResult("%v", err)
	}
	return days, nil
}

type dateRangeParams struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (t *DateTools) handleDateRange(_ context.Context, _ trace.Span, p dateRangeParams) (any, error) {
	if err := RequireField("start_date", p.StartDate); err != nil {
		return nil, err
	}
	if err := RequireField("end_date", p.EndDate); err != nil {
		return nil, err
	}
	r, err := dates.FormatDateRange(p.StartDate, p.EndDate)
	if err != nil {
		return ErrResult("%v", err)
	}
	return r, nil
}
