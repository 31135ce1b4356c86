package dashboard

import "fmt"

// Messages shown after a save attempt.
const (
	MsgCountrySaveFailed = "Error saving country."
	MsgChartSaveFailed   = "Error saving chart."
)

func CountrySavedMessage(countryName string) string {
	return fmt.Sprintf("'%s' saved to dashboard!", countryName)
}

func ChartSavedMessage(indicatorName string) string {
	return fmt.Sprintf("'%s' chart saved!", indicatorName)
}
