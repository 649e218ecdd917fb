// Package mapping turns Open edX records into the shapes the L&D service accepts.
package mapping

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	dserrors "github.com/systmms/landdsync/internal/errors"
)

// TimestampLayout is the wire format of CreatedDate.
const TimestampLayout = "2006-01-02T15:04:05"

// Wire literals the L&D API expects as strings.
const (
	wireFalse = "false"
	wireTrue  = "true"
	wireNull  = "null"
)

// Consumption statuses.
const (
	StatusPassed     = "Passed"
	StatusFailed     = "Failed"
	StatusInProgress = "InProgress"
)

// SourceRecord gives path access to one raw source record.
type SourceRecord struct {
	data gjson.Result
}

// NewSourceRecord wraps a parsed record.
func NewSourceRecord(data gjson.Result) SourceRecord {
	return SourceRecord{data: data}
}

// StringForPath returns the value at path and whether it is present and not null.
func (s SourceRecord) StringForPath(path string) (string, bool) {
	result := s.data.Get(path)
	return result.String(), result.Exists() && result.Type != gjson.Null
}

// CatalogRecord is one course in the L&D catalog shape.
type CatalogRecord struct {
	Confidential         string `json:"Confidential"`
	BIClassification     string `json:"BIClassification"`
	BusinessOrg          string `json:"BusinessOrg"`
	IsPrimary            string `json:"IsPrimary"`
	IsShareable          string `json:"IsShareable"`
	CourseType           string `json:"CourseType"`
	HideInSearch         string `json:"HideInSearch"`
	HideInRoadMap        string `json:"HideInRoadMap"`
	ParentSourceSystemID string `json:"ParentSourceSystemId"`
	Deleted              string `json:"Deleted"`
	SourceSystemID       string `json:"SourceSystemid"`
	Version              string `json:"Version"`
	Brand                string `json:"Brand"`
	Modality             string `json:"Modality"`
	MediaType            string `json:"MediaType"`
	Status               string `json:"Status"`
	DescriptionLong      string `json:"DescriptionLong"`
	SunsetDate           string `json:"SunsetDate,omitempty"`
	Keywords             string `json:"Keywords"`
	ThumbnailLargeURI    string `json:"ThumbnailLargeUri"`
	AvailabilityDate     string `json:"AvailabilityDate,omitempty"`
	Name                 string `json:"Name"`
	URL                  string `json:"Url"`
	DescriptionShort     string `json:"DescriptionShort"`
	ThumbnailShort       string `json:"ThumbnailShort"`
	TrainingOrgs         string `json:"TrainingOrgs"`
	ExternalID           string `json:"ExternalId"`
}

// ConsumptionRecord is one learner/course status in the L&D consumption shape.
type ConsumptionRecord struct {
	UserAlias         string `json:"UserAlias"`
	ExternalID        string `json:"ExternalId"`
	SourceSystemID    string `json:"SourceSystemId"`
	PersonnelNumber   int    `json:"PersonnelNumber"`
	SFSync            int    `json:"SFSync"`
	UUID              string `json:"UUID"`
	ActionVerb        string `json:"ActionVerb"`
	ActionValue       int    `json:"ActionValue"`
	CreatedDate       string `json:"CreatedDate"`
	SubmittedBy       string `json:"SubmittedBy"`
	ActionFlag        string `json:"ActionFlag"`
	ConsumptionStatus string `json:"ConsumptionStatus"`
}

// MapCatalogRecord maps one catalog record. index only labels errors.
func MapCatalogRecord(sourceSystemID string, index int, rec SourceRecord) (CatalogRecord, error) {
	courseID, ok := rec.StringForPath("course_id")
	if !ok || courseID == "" {
		return CatalogRecord{}, missing(index, "", "course_id")
	}

	fields := map[string]string{}
	for _, path := range []string{"name", "org", "blocks_url", "media.image.large", "media.image.small"} {
		value, ok := rec.StringForPath(path)
		if !ok {
			return CatalogRecord{}, missing(index, courseID, path)
		}
		fields[path] = value
	}

	courseURL, err := AboutURL(fields["blocks_url"], courseID)
	if err != nil {
		return CatalogRecord{}, dserrors.MappingError{Index: index, RecordID: courseID, Field: "blocks_url", Message: err.Error()}
	}
	externalID, err := ExternalID(courseID)
	if err != nil {
		return CatalogRecord{}, dserrors.MappingError{Index: index, RecordID: courseID, Field: "course_id", Message: err.Error()}
	}

	out := CatalogRecord{
		Confidential:         wireFalse,
		BIClassification:     "MBI",
		BusinessOrg:          wireNull,
		IsPrimary:            wireTrue,
		IsShareable:          wireNull,
		CourseType:           "Build",
		HideInSearch:         "hidden",
		HideInRoadMap:        wireNull,
		ParentSourceSystemID: "0",
		Deleted:              wireFalse,
		SourceSystemID:       sourceSystemID,
		Version:              "1",
		Brand:                "Infopedia",
		Modality:             "OLT",
		MediaType:            "Course",
		Status:               "Active",
		DescriptionLong:      wireNull,
		Keywords:             fields["name"],
		ThumbnailLargeURI:    fields["media.image.large"],
		Name:                 fields["name"],
		URL:                  courseURL,
		DescriptionShort:     wireNull,
		ThumbnailShort:       fields["media.image.small"],
		TrainingOrgs:         fields["org"],
		ExternalID:           externalID,
	}
	if end, ok := rec.StringForPath("end"); ok && end != "" {
		out.SunsetDate = datePart(end)
	}
	if start, ok := rec.StringForPath("enrollment_start"); ok && start != "" {
		out.AvailabilityDate = datePart(start)
	}
	return out, nil
}

// MapConsumptionRecord maps one gradebook entry. CreatedDate is now, in UTC.
func MapConsumptionRecord(sourceSystemID, submittedBy string, now time.Time, index int, rec SourceRecord) (ConsumptionRecord, error) {
	courseKey, ok := rec.StringForPath("course_key")
	if !ok || courseKey == "" {
		return ConsumptionRecord{}, missing(index, "", "course_key")
	}
	email, ok := rec.StringForPath("email")
	if !ok || email == "" {
		return ConsumptionRecord{}, missing(index, courseKey, "email")
	}
	grade, _ := rec.StringForPath("letter_grade")

	return ConsumptionRecord{
		UserAlias:         email,
		ExternalID:        courseKey,
		SourceSystemID:    sourceSystemID,
		UUID:              wireNull,
		ActionVerb:        wireNull,
		CreatedDate:       now.UTC().Format(TimestampLayout),
		SubmittedBy:       submittedBy,
		ActionFlag:        wireNull,
		ConsumptionStatus: ConsumptionStatus(grade),
	}, nil
}

// ConsumptionStatus maps a letter grade onto the L&D status vocabulary.
func ConsumptionStatus(letterGrade string) string {
	switch letterGrade {
	case "Pass":
		return StatusPassed
	case "Fail":
		return StatusFailed
	default:
		return StatusInProgress
	}
}

// IsInternalUser reports whether username contains any of the excluded
// domains, ignoring case.
func IsInternalUser(username string, excludedDomains []string) bool {
	lower := strings.ToLower(username)
	for _, domain := range excludedDomains {
		if domain != "" && strings.Contains(lower, strings.ToLower(domain)) {
			return true
		}
	}
	return false
}

// AboutURL builds the course about page on the host serving blocksURL.
func AboutURL(blocksURL, courseID string) (string, error) {
	u, err := url.Parse(blocksURL)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q has no scheme or host", blocksURL)
	}
	return fmt.Sprintf("%s://%s/courses/%s/about", u.Scheme, u.Host, courseID), nil
}

// ExternalID returns the colon separated segment that follows the key type,
// so "course-v1:Org+C1+2020" yields "Org+C1+2020".
func ExternalID(courseID string) (string, error) {
	parts := strings.Split(courseID, ":")
	if len(parts) < 2 || parts[1] == "" {
		return "", fmt.Errorf("course id %q has no segment after ':'", courseID)
	}
	return parts[1], nil
}

func datePart(ts string) string {
	date, _, _ := strings.Cut(ts, "T")
	return date
}

func missing(index int, id, field string) error {
	return dserrors.MappingError{Index: index, RecordID: id, Field: field, Message: "missing or null"}
}
