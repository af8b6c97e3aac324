package models

import (
	"math"
	"strconv"
	"strings"
)

// Season is the meteorological season code carried by every normalized row.
// Valid codes are 0..4 where 0 means Unknown.
type Season int

const (
	SeasonUnknown Season = iota
	SeasonSpring
	SeasonSummer
	SeasonFall
	SeasonWinter
)

var seasonLabels = map[Season]string{
	SeasonUnknown: "Unknown",
	SeasonSpring:  "Spring",
	SeasonSummer:  "Summer",
	SeasonFall:    "Fall",
	SeasonWinter:  "Winter",
}

// seasonCodes is the label -> code bijection used when a dataset stores
// seasons as text. Keys are lower-cased.
var seasonCodes = map[string]Season{
	"spring": SeasonSpring,
	"summer": SeasonSummer,
	"fall":   SeasonFall,
	"winter": SeasonWinter,
}

// Label returns the human label for the season code.
func (s Season) Label() string {
	if label, ok := seasonLabels[s]; ok {
		return label
	}
	return seasonLabels[SeasonUnknown]
}

func (s Season) String() string {
	return s.Label()
}

// Code returns the integer form of the season as text.
func (s Season) Code() string {
	return strconv.Itoa(int(s))
}

// Valid reports whether s is one of the five known codes.
func (s Season) Valid() bool {
	return s >= SeasonUnknown && s <= SeasonWinter
}

// ParseSeason converts a raw cell into a Season. Labels ("Winter") and
// integral numbers ("4", "4.0") in 0..4 are accepted. Anything else,
// including the empty string, yields SeasonUnknown with ok=false so that
// callers can count the coercion.
func ParseSeason(raw string) (Season, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return SeasonUnknown, false
	}

	if code, ok := seasonCodes[strings.ToLower(value)]; ok {
		return code, true
	}

	n, ok := parseIntegral(value)
	if !ok {
		return SeasonUnknown, false
	}

	season := Season(n)
	if !season.Valid() {
		return SeasonUnknown, false
	}

	return season, true
}

// SeasonLabels returns the labels of the known seasons in code order,
// followed by Unknown.
func SeasonLabels() []string {
	return []string{"Spring", "Summer", "Fall", "Winter", "Unknown"}
}

// WeatherCode is the weather severity category of a row. Its meaning depends
// on the dataset granularity, so labels are supplied by the dataset schema.
type WeatherCode int

// Text returns the code as it is compared against filter criteria.
func (w WeatherCode) Text() string {
	return strconv.Itoa(int(w))
}

// ParseWeatherCode parses an integral weather code ("1", "1.0").
func ParseWeatherCode(raw string) (WeatherCode, bool) {
	n, ok := parseIntegral(strings.TrimSpace(raw))
	if !ok {
		return 0, false
	}
	return WeatherCode(n), true
}

// CanonicalWeather returns the comparison form of a weather cell or selector
// value: integral numbers are rendered without decimals, other text is
// trimmed and returned unchanged.
func CanonicalWeather(raw string) string {
	if code, ok := ParseWeatherCode(raw); ok {
		return code.Text()
	}
	return strings.TrimSpace(raw)
}

// DefaultWeatherLabels are the labels of the bike sharing weathersit codes.
func DefaultWeatherLabels() map[WeatherCode]string {
	return map[WeatherCode]string{
		1: "Clear",
		2: "Mist",
		3: "Light Rain",
		4: "Heavy Rain",
	}
}

// AllOption is the selector sentinel meaning "no constraint".
const AllOption = "All"

// Choice is a tri-state selector for binary flags such as working day and
// holiday.
type Choice int

const (
	ChoiceAll Choice = iota
	ChoiceYes
	ChoiceNo
)

// ParseChoice accepts "", "All", "Yes"/"No", "1"/"0" and "true"/"false"
// (case-insensitive).
func ParseChoice(raw string) (Choice, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "all":
		return ChoiceAll, nil
	case "yes", "1", "true":
		return ChoiceYes, nil
	case "no", "0", "false":
		return ChoiceNo, nil
	}
	return ChoiceAll, &ValidationError{
		Field:   "choice",
		Value:   raw,
		Message: "invalid choice, expected All, Yes or No",
	}
}

func (c Choice) String() string {
	switch c {
	case ChoiceYes:
		return "Yes"
	case ChoiceNo:
		return "No"
	default:
		return AllOption
	}
}

// MarshalText renders the choice as its selector label.
func (c Choice) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses a selector label.
func (c *Choice) UnmarshalText(text []byte) error {
	parsed, err := ParseChoice(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// IsSet reports whether the choice constrains rows.
func (c Choice) IsSet() bool {
	return c == ChoiceYes || c == ChoiceNo
}

// Matches reports whether a 0/1 flag satisfies the choice.
func (c Choice) Matches(flag int) bool {
	switch c {
	case ChoiceYes:
		return flag == 1
	case ChoiceNo:
		return flag == 0
	default:
		return true
	}
}

// ChoiceOptions lists the selector values for flag dimensions.
func ChoiceOptions() []string {
	return []string{AllOption, "Yes", "No"}
}

// ParseFlag converts a 0/1 cell into an int flag. Unparseable cells become 0.
func ParseFlag(raw string) int {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "true", "yes":
		return 1
	}
	if n, ok := parseIntegral(value); ok && n == 1 {
		return 1
	}
	return 0
}

func parseIntegral(value string) (int, bool) {
	if n, err := strconv.Atoi(value); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
