package tracking

import (
	"strings"
	"unicode"
)

// DefaultAirline is the IATA code assumed when a callsign is only a flight number.
const DefaultAirline = "UA"

// airlinePrefixes maps IATA airline designators to their ICAO callsign prefix.
// ADS-B transponders broadcast the ICAO form, while people usually type the
// IATA one.
var airlinePrefixes = map[string]string{
	"UA": "UAL",
	"AA": "AAL",
	"DL": "DAL",
	"WN": "SWA",
	"B6": "JBU",
	"AS": "ASA",
	"NK": "NKS",
	"F9": "FFT",
	"AC": "ACA",
	"BA": "BAW",
	"LH": "DLH",
	"AF": "AFR",
	"KL": "KLM",
	"EK": "UAE",
	"QF": "QFA",
}

// CallsignVariations returns the callsigns an aircraft flying the given
// flight might broadcast, input first. "UA262", "UAL262" and "262" all
// expand to the UA/UAL forms, with and without a space before the number.
func CallsignVariations(callsign string) []string {
	cs := strings.ToUpper(strings.TrimSpace(callsign))
	if cs == "" {
		return nil
	}

	out := []string{cs}
	seen := map[string]bool{cs: true}
	add := func(v string) {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	addForms := func(iata, icao, number string) {
		add(iata + number)
		add(icao + number)
		add(iata + " " + number)
		add(icao + " " + number)
	}

	if isDigits(cs) {
		addForms(DefaultAirline, airlinePrefixes[DefaultAirline], cs)
		return out
	}

	// ICAO prefix first so "UAL262" is not read as "UA" + "L262"
	for iata, icao := range airlinePrefixes {
		if number, ok := strings.CutPrefix(cs, icao); ok && isFlightNumber(number) {
			addForms(iata, icao, strings.TrimSpace(number))
			return out
		}
	}
	for iata, icao := range airlinePrefixes {
		if number, ok := strings.CutPrefix(cs, iata); ok && isFlightNumber(number) {
			addForms(iata, icao, strings.TrimSpace(number))
			return out
		}
	}

	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// isFlightNumber accepts an optional leading space, a digit and then
// alphanumerics ("262", " 262", "1234A").
func isFlightNumber(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || !unicode.IsDigit(rune(s[0])) {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) && !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
