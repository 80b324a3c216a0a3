package episerver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// FlexString accepts a JSON string, number or boolean.  The feeds aren't consistent about which
// they send for IDs, codes and option values.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("episerver: couldn't decode string: %w", err)
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(string(b))
	return nil
}

func (f FlexString) String() string { return string(f) }

// Int parses the value as an integer.
func (f FlexString) Int() (int, error) {
	return strconv.Atoi(string(f))
}

// Source keeps the exact bytes a record was decoded from.
type Source struct {
	Raw json.RawMessage `json:"-"`
}

func (s *Source) setRaw(raw json.RawMessage) { s.Raw = raw }

// Media is an image reference as used by voyages, programs and cabin categories.
type Media struct {
	ID                FlexString `json:"id"`
	HighResolutionURI string     `json:"highResolutionUri"`
	AlternateText     *string    `json:"alternateText"`
}

// Image is the excursion/program flavour of an image reference.
type Image struct {
	ImageURL string  `json:"imageUrl"`
	AltText  *string `json:"altText"`
	Caption  *string `json:"caption"`
}

// Option is one value of a multi-choice property, e.g. a season or an activity category.
type Option struct {
	ID   FlexString `json:"id"`
	Text string     `json:"text"`
}

// Summary is the minimum every list endpoint returns per item.  Ports are keyed by Code, the
// rest by ID.
type Summary struct {
	Source
	ID                FlexString `json:"id"`
	Code              FlexString `json:"code"`
	IsFallbackContent bool       `json:"isFallbackContent"`
}

type Voyage struct {
	Source
	ID                    int            `json:"id"`
	Heading               string         `json:"heading"`
	Intro                 *string        `json:"intro"`
	IncludedInfo          *string        `json:"includedInfo"`
	NotIncludedInfo       *string        `json:"notIncludedInfo"`
	TravelSuggestionCodes []string       `json:"travelSuggestionCodes"`
	DurationText          *string        `json:"durationText"`
	DestinationID         FlexString     `json:"destinationId"`
	FromPort              FlexString     `json:"fromPort"`
	ToPort                FlexString     `json:"toPort"`
	Notes                 *string        `json:"notes"`
	SellingPoints         []*string      `json:"sellingPoints"`
	LargeMap              *Media         `json:"largeMap"`
	MediaContent          []Media        `json:"mediaContent"`
	Itinerary             []ItineraryDay `json:"itinerary"`
	URL                   string         `json:"url"`
	IsFallbackContent     bool           `json:"isFallbackContent"`
}

type ItineraryDay struct {
	Day                FlexString   `json:"day"`
	Location           *string      `json:"location"`
	Heading            *string      `json:"heading"`
	Body               *string      `json:"body"`
	MediaContent       []Media      `json:"mediaContent"`
	IncludedExcursions []FlexString `json:"includedExcursions"`
}

type Excursion struct {
	Source
	ID                int        `json:"id"`
	Title             string     `json:"title"`
	Summary           *string    `json:"summary"`
	ActivityCategory  []Option   `json:"activityCategory"`
	Years             []Option   `json:"years"`
	Seasons           []Option   `json:"seasons"`
	Details           *string    `json:"details"`
	Directions        []Option   `json:"directions"`
	DurationText      *string    `json:"durationText"`
	PhysicalLevel     []Option   `json:"physicalLevel"`
	Code              FlexString `json:"code"`
	Image             *Image     `json:"image"`
	IsFallbackContent bool       `json:"isFallbackContent"`
}

type Ship struct {
	Source
	Code            FlexString      `json:"code"`
	Name            string          `json:"name"`
	ImageURL        string          `json:"imageUrl"`
	CabinCategories []CabinCategory `json:"cabinCategories"`
	Decks           []Deck          `json:"decks"`
}

type CabinCategory struct {
	Title       string       `json:"title"`
	Description *string      `json:"description"`
	Media       []Media      `json:"media"`
	CabinGrades []CabinGrade `json:"cabinGrades"`
}

type CabinGrade struct {
	Code             FlexString `json:"code"`
	Title            string     `json:"title"`
	ShortDescription *string    `json:"shortDescription"`
	LongDescription  *string    `json:"longDescription"`
	ExtraInformation *string    `json:"extraInformation"`
	SizeFrom         *float64   `json:"sizeFrom"`
	SizeTo           *float64   `json:"sizeTo"`
	HasBathroom      bool       `json:"hasBathroom"`
	HasBalcony       bool       `json:"hasBalcony"`
	HasSofa          bool       `json:"hasSofa"`
	HasTv            bool       `json:"hasTv"`
	HasDinnerTable   bool       `json:"hasDinnerTable"`
	Bed              FlexString `json:"bed"`
	Window           FlexString `json:"window"`
	IsSpecial        bool       `json:"isSpecial"`
	CabinGradeImages []string   `json:"cabinGradeImages"`
}

type Deck struct {
	Number FlexString `json:"number"`
	Deck   *Media     `json:"deck"`
}

type Program struct {
	Source
	ID                int        `json:"id"`
	Heading           *string    `json:"heading"`
	Title             *string    `json:"title"`
	Intro             *string    `json:"intro"`
	Body              *string    `json:"body"`
	Summary           *string    `json:"summary"`
	SecondaryBody     *string    `json:"secondaryBody"`
	DurationHours     FlexString `json:"durationHours"`
	DurationDays      FlexString `json:"durationDays"`
	BookingCode       FlexString `json:"bookingCode"`
	Code              FlexString `json:"code"`
	SellingPoints     []*string  `json:"sellingPoints"`
	PriceValue        *float64   `json:"priceValue"`
	Price             FlexString `json:"price"`
	Currency          *string    `json:"currency"`
	MediaContent      []*Media   `json:"mediaContent"`
	Image             *Image     `json:"image"`
	Destinations      []string   `json:"destinations"`
	URL               string     `json:"url"`
	IsFallbackContent bool       `json:"isFallbackContent"`
}

// Name is the heading, or the title when there's no heading.
func (p Program) Name() string {
	if p.Heading != nil && *p.Heading != "" {
		return *p.Heading
	}
	if p.Title != nil {
		return *p.Title
	}
	return ""
}

type Port struct {
	Source
	Code        string `json:"code"`
	Name        string `json:"name"`
	CountryCode string `json:"countryCode"`
}

type Destination struct {
	Source
	ID      int    `json:"id"`
	Heading string `json:"heading"`
}
