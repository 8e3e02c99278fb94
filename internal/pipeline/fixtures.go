package pipeline

import (
	"fmt"

	"civinigrani/internal/ingestion"
	"civinigrani/internal/population"
)

// FixtureState is the state every fixture row belongs to.
const FixtureState = "Uttar Pradesh"

type fixtureDistrict struct {
	name       string
	population int64
	allocation float64
	gaps       [6]float64 // delivery gap per month, Jan..Jun 2024
	signals    [6]int64
}

// Six months of eight Agra/Chitrakoot-division districts. Banda deteriorates
// in June, Mathura is chronically critical and Agra has a March grievance
// spike followed by a worse April.
var fixtureDistricts = []fixtureDistrict{
	{"Agra", 4418797, 1000, [6]float64{0.08, 0.08, 0.08, 0.14, 0.10, 0.09}, [6]int64{10, 10, 40, 12, 11, 10}},
	{"Aligarh", 3673889, 950, [6]float64{0.06, 0.07, 0.06, 0.07, 0.06, 0.07}, [6]int64{8, 9, 8, 9, 8, 9}},
	{"Mathura", 2547184, 900, [6]float64{0.35, 0.36, 0.34, 0.35, 0.36, 0.35}, [6]int64{15, 14, 16, 15, 14, 15}},
	{"Firozabad", 2498156, 850, [6]float64{0.12, 0.11, 0.12, 0.13, 0.12, 0.11}, [6]int64{6, 7, 6, 7, 6, 7}},
	{"Etah", 1774480, 800, [6]float64{0.05, 0.05, 0.06, 0.05, 0.05, 0.06}, [6]int64{5, 5, 5, 5, 5, 5}},
	{"Mainpuri", 1868529, 780, [6]float64{0.09, 0.10, 0.09, 0.10, 0.09, 0.10}, [6]int64{7, 7, 7, 7, 7, 7}},
	{"Banda", 1799410, 760, [6]float64{0.10, 0.10, 0.12, 0.11, 0.12, 0.45}, [6]int64{20, 22, 21, 19, 23, 80}},
	{"Hamirpur", 1104285, 740, [6]float64{0.07, 0.08, 0.07, 0.08, 0.07, 0.08}, [6]int64{4, 4, 4, 4, 4, 4}},
}

// FixtureInputs returns a deterministic synthetic dataset covering every
// analysis: PDS, grievance signals, receipts and population.
func FixtureInputs() Inputs {
	pds := &ingestion.Table{Columns: []string{
		"State_Name", "District_Name", "Month",
		"Total_Wheat_Allocated", "Total_Rice_Allocated",
		"Total_Wheat_Distributed", "Total_Rice_Distributed",
	}}
	signals := &ingestion.Table{Columns: []string{"District", "Month", "Grievance_Signals", "Source"}}
	receipts := &ingestion.Table{Columns: []string{"Month", "Receipts", "Disposal"}}
	counts := make(map[string]int64, len(fixtureDistricts))

	for m := 0; m < 6; m++ {
		month := fmt.Sprintf("2024-%02d-01", m+1)
		var totalSignals int64
		for _, d := range fixtureDistricts {
			wheat := d.allocation * 0.6
			rice := d.allocation - wheat
			keep := 1 - d.gaps[m]
			pds.Rows = append(pds.Rows, []string{
				FixtureState, d.name, month,
				fmt.Sprintf("%.2f", wheat), fmt.Sprintf("%.2f", rice),
				fmt.Sprintf("%.2f", wheat*keep), fmt.Sprintf("%.2f", rice*keep),
			})
			signals.Rows = append(signals.Rows, []string{
				d.name, month, fmt.Sprintf("%d", d.signals[m]), "pgsm",
			})
			totalSignals += d.signals[m]
		}
		receipts.Rows = append(receipts.Rows, []string{
			month, fmt.Sprintf("%d", totalSignals*10), fmt.Sprintf("%d", totalSignals*9),
		})
	}
	for _, d := range fixtureDistricts {
		counts[d.name] = d.population
	}

	return Inputs{
		PDS:        ingestion.NewStaticSource("fixture-pds", pds),
		Grievance:  ingestion.NewStaticSource("fixture-grievance", signals),
		Receipts:   ingestion.NewStaticSource("fixture-receipts", receipts),
		Population: population.New(counts),
	}
}
