package catalog

type Country struct {
	ID       string `json:"id"`
	ISO2Code string `json:"iso2Code"`
	Name     string `json:"name"`
}

type Indicator struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChartDataPoint is one year of an indicator series. Name holds the year label.
type ChartDataPoint struct {
	Name  string   `json:"name"`
	Value *float64 `json:"value,omitempty"`
}

type ChartSeries struct {
	Name   string           `json:"name"`
	Series []ChartDataPoint `json:"series"`
}

// Indicators is the fixed set offered for every country.
var Indicators = []Indicator{
	{ID: "SP.POP.TOTL", Name: "Population, Total"},
	{ID: "NY.GDP.MKTP.CD", Name: "GDP (Current US$)"},
	{ID: "FP.CPI.TOTL.ZG", Name: "Inflation (Annual %)"},
	{ID: "SL.UEM.TOTL.ZS", Name: "Unemployment Rate (%)"},
}

// LookupIndicator finds one of the fixed indicators by id.
func LookupIndicator(id string) (Indicator, bool) {
	for _, ind := range Indicators {
		if ind.ID == id {
			return ind, true
		}
	}
	return Indicator{}, false
}
