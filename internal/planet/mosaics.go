package planet

import "fmt"

// DefaultMosaics maps a year to the NICFI tropical normalized analytic
// mosaic covering it.
var DefaultMosaics = map[int]string{
	2016: "planet_medres_normalized_analytic_2016-06_2016-11_mosaic",
	2017: "planet_medres_normalized_analytic_2017-06_2017-11_mosaic",
	2018: "planet_medres_normalized_analytic_2018-06_2018-11_mosaic",
	2019: "planet_medres_normalized_analytic_2019-06_2019-11_mosaic",
	2020: "planet_medres_normalized_analytic_2020-06_2020-08_mosaic",
	2021: "planet_medres_normalized_analytic_2021-11_mosaic",
	2022: "planet_medres_normalized_analytic_2022-11_mosaic",
	2023: "planet_medres_normalized_analytic_2023-11_mosaic",
	2024: "planet_medres_normalized_analytic_2024-11_mosaic",
}

// MosaicName returns the mosaic for year, preferring overrides.
func MosaicName(year int, overrides map[int]string) (string, error) {
	if name, ok := overrides[year]; ok && name != "" {
		return name, nil
	}
	if name, ok := DefaultMosaics[year]; ok {
		return name, nil
	}
	return "", fmt.Errorf("no mosaic configured for year %d", year)
}
