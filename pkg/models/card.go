package models

// Card is one record of the remote card collection.
//
// Every field is optional at the boundary: the upstream API mixes strings,
// numbers and nulls freely, so string-ish fields are decoded into Text and
// only turned into bucket keys by the normalizer.
type Card struct {
	Name                   Text `json:"name"`
	Rarity                 Text `json:"rarity"`
	Feature                Text `json:"feature"`                   // e.g. "Ultra Hero", "Kaiju"
	Type                   Text `json:"type"`                      // "-" means explicitly none
	Section                Text `json:"section"`                   // free-form set/section label
	Number                 Text `json:"number"`                    // card number, usually carries the set code
	DisplayCardBundleNames Text `json:"display_card_bundle_names"` // bundle names shown on the product page
	ParticipatingWorks     Text `json:"participating_works"`
	CharacterName          Text `json:"character_name"`
	IllustratorName        Text `json:"illustrator_name"`
	PublicationYear        Text `json:"publication_year"` // string or number upstream
	ErrataEnable           Flag `json:"errata_enable"`
}

// Field names a Card attribute by its JSON key.
type Field string

const (
	FieldName                   Field = "name"
	FieldRarity                 Field = "rarity"
	FieldFeature                Field = "feature"
	FieldType                   Field = "type"
	FieldSection                Field = "section"
	FieldNumber                 Field = "number"
	FieldDisplayCardBundleNames Field = "display_card_bundle_names"
	FieldParticipatingWorks     Field = "participating_works"
	FieldCharacterName          Field = "character_name"
	FieldIllustratorName        Field = "illustrator_name"
	FieldPublicationYear        Field = "publication_year"
)

// Get returns the raw value of f. Unknown fields yield an invalid Text.
func (c Card) Get(f Field) Text {
	switch f {
	case FieldName:
		return c.Name
	case FieldRarity:
		return c.Rarity
	case FieldFeature:
		return c.Feature
	case FieldType:
		return c.Type
	case FieldSection:
		return c.Section
	case FieldNumber:
		return c.Number
	case FieldDisplayCardBundleNames:
		return c.DisplayCardBundleNames
	case FieldParticipatingWorks:
		return c.ParticipatingWorks
	case FieldCharacterName:
		return c.CharacterName
	case FieldIllustratorName:
		return c.IllustratorName
	case FieldPublicationYear:
		return c.PublicationYear
	default:
		return Text{}
	}
}
