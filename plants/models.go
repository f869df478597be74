package plants

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// TagKey names a plant attribute.
type TagKey string

const (
	TagLocation            TagKey = "location"
	TagPlanted             TagKey = "planted"
	TagConfidence          TagKey = "confidence"
	TagPublic              TagKey = "public"
	TagBonsai              TagKey = "bonsai"
	TagNeedsIdentification TagKey = "needsIdentification"
	TagNeedsLabel          TagKey = "needsLabel"
	TagLikelyDead          TagKey = "likelyDead"
)

// TagKeys lists every known tag in display order.
var TagKeys = []TagKey{
	TagLocation,
	TagPlanted,
	TagConfidence,
	TagPublic,
	TagBonsai,
	TagNeedsIdentification,
	TagNeedsLabel,
	TagLikelyDead,
}

// Confidence values for TagConfidence.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Photo references an uploaded image.
type Photo struct {
	ID         string `json:"id"`
	ModifyDate string `json:"modifyDate"`
}

// Link points at an external reference page.
type Link struct {
	Site string `json:"site"`
	URL  string `json:"url"`
}

// Validate will validate the link
func (l Link) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Site, validation.Required),
		validation.Field(&l.URL, validation.Required, is.URL),
	)
}

// Plant is one catalogued plant.
type Plant struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	ScientificName string            `json:"scientificName,omitempty"`
	Photos         []Photo           `json:"photos"`
	Links          []Link            `json:"links"`
	Tags           map[TagKey]string `json:"tags"`
}

// Validate will validate the plant
func (p Plant) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ID, validation.Required, validation.Length(1, 128)),
		validation.Field(&p.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.Links),
		validation.Field(&p.Tags, validation.By(validateTags)),
	)
}

// Tag returns the tag value and whether it is set.
func (p Plant) Tag(key TagKey) (string, bool) {
	v, ok := p.Tags[key]
	return v, ok
}

// IsPublic reports whether the plant is tagged public.
func (p Plant) IsPublic() bool {
	_, ok := p.Tags[TagPublic]
	return ok
}

func validateTags(value any) error {
	tags, _ := value.(map[TagKey]string)
	for key, v := range tags {
		if !knownTag(key) {
			return errors.New("unknown tag " + string(key))
		}
		if key == TagConfidence {
			if err := validation.Validate(v, validation.In(ConfidenceHigh, ConfidenceMedium, ConfidenceLow)); err != nil {
				return err
			}
		}
	}
	return nil
}

func knownTag(key TagKey) bool {
	for _, k := range TagKeys {
		if k == key {
			return true
		}
	}
	return false
}
