package render

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/couchcryptid/road-risk-playground/internal/domain"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Placeholder is shown for inputs the backend did not return.
const Placeholder = "—"

// resultFields is the fixed, ordered list of model inputs shown to users.
var resultFields = []struct{ label, key string }{
	{"Curvature", "curvature"},
	{"Holiday", "holiday"},
	{"Lighting", "lighting"},
	{"Number of Lanes", "num_lanes"},
	{"Public Road", "public_road"},
	{"Road Signs Present", "road_signs_present"},
	{"Road Type", "road_type"},
	{"School Season", "school_season"},
	{"Speed Limit", "speed_limit"},
	{"Time of Day", "time_of_day"},
	{"Weather", "weather"},
}

var printer = message.NewPrinter(language.AmericanEnglish)

// Row is one labeled model input.
type Row struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Result is the presentable form of an accepted assessment.
type Result struct {
	Prediction float64 `json:"prediction"`
	Headline   string  `json:"headline"`
	Rows       []Row   `json:"rows"`
}

// Present formats inputs and prediction. It returns false when either is nil,
// in which case nothing should be shown.
func Present(inputs domain.ModelInputs, prediction *float64) (Result, bool) {
	if inputs == nil || prediction == nil {
		return Result{}, false
	}

	rows := make([]Row, 0, len(resultFields))
	for _, f := range resultFields {
		rows = append(rows, Row{Label: f.label, Value: FormatValue(inputs[f.key])})
	}
	return Result{
		Prediction: *prediction,
		Headline:   "The risk of a crash was calculated to be " + FormatValue(*prediction),
		Rows:       rows,
	}, true
}

// WriteTable renders the headline and rows as a plain-text table.
func (r Result) WriteTable(w io.Writer) {
	fmt.Fprintln(w, r.Headline)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Input", "Value"})
	table.SetAutoWrapText(false)
	for _, row := range r.Rows {
		table.Append([]string{row.Label, row.Value})
	}
	table.Render()
}

// FormatValue renders a model input the way the results table shows it.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return Placeholder
	case bool:
		if x {
			return "True"
		}
		return "False"
	case float64:
		return formatNumber(x)
	case float32:
		return formatNumber(float64(x))
	case int:
		return formatNumber(float64(x))
	case int64:
		return formatNumber(float64(x))
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return formatNumber(f)
		}
		return x.String()
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func formatNumber(f float64) string {
	return printer.Sprint(number.Decimal(f, number.MaxFractionDigits(3)))
}
