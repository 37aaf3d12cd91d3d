package sheetio

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/exa-sheets/internal/grid"
)

// DefaultCompanies seeds the sample input sheet.
var DefaultCompanies = []string{
	"Apple", "Microsoft", "Google", "Amazon", "Meta",
	"Netflix", "NVIDIA", "Tesla", "IBM", "Intel",
	"Oracle", "Salesforce", "Adobe", "Cisco", "Samsung",
	"Uber", "Airbnb", "Shopify", "Spotify", "PayPal",
}

// DefaultDataPoints are the attribute columns of the sample input sheet.
var DefaultDataPoints = []string{
	"Revenue", "Headcount", "CEO", "Headquarters",
	"Market Cap", "Ticker", "Founded Year", "Website",
}

// Template builds an input grid with a Company column and empty data point
// columns. Empty arguments fall back to the defaults.
func Template(companies, dataPoints []string) (*grid.Grid, error) {
	if len(companies) == 0 {
		companies = DefaultCompanies
	}
	if len(dataPoints) == 0 {
		dataPoints = DefaultDataPoints
	}

	g, err := grid.New(append([]string{"Company"}, dataPoints...))
	if err != nil {
		return nil, eris.Wrap(err, "sheetio: template header")
	}
	for _, c := range companies {
		g.AddRow(c, nil)
	}
	return g, nil
}

// WriteTemplate writes a sample input sheet to path.
func WriteTemplate(path string, companies, dataPoints []string) (*grid.Grid, error) {
	g, err := Template(companies, dataPoints)
	if err != nil {
		return nil, err
	}
	if err := Write(path, g); err != nil {
		return nil, err
	}
	return g, nil
}
