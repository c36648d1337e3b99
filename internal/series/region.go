package series

import "strings"

// RegionSeparator joins country and subdivision in a region key.
const RegionSeparator = " - "

// RegionKey derives the region identifier for a row: the country alone, or
// "country - subdivision" when a subdivision is given.
func RegionKey(country, subdivision string) (string, error) {
	country = strings.TrimSpace(country)
	subdivision = strings.TrimSpace(subdivision)
	if country == "" {
		return "", &ValidationError{Region: subdivision, Reason: "empty country"}
	}
	if subdivision == "" {
		return country, nil
	}
	return country + RegionSeparator + subdivision, nil
}
