package models

// Card mirrors the subset of the Pokémon TCG API card object kept in the
// local catalog file.
type Card struct {
	ID                   string      `json:"id"`
	Name                 string      `json:"name"`
	Supertype            string      `json:"supertype,omitempty"`
	Subtypes             []string    `json:"subtypes,omitempty"`
	HP                   string      `json:"hp,omitempty"`
	Types                []string    `json:"types,omitempty"`
	EvolvesFrom          string      `json:"evolvesFrom,omitempty"`
	EvolvesTo            []string    `json:"evolvesTo,omitempty"`
	Rules                []string    `json:"rules,omitempty"`
	Attacks              []Attack    `json:"attacks,omitempty"`
	Weaknesses           []TypeValue `json:"weaknesses,omitempty"`
	Resistances          []TypeValue `json:"resistances,omitempty"`
	RetreatCost          []string    `json:"retreatCost,omitempty"`
	ConvertedRetreatCost int         `json:"convertedRetreatCost,omitempty"`
	Set                  *CardSet    `json:"set,omitempty"`
	Number               string      `json:"number,omitempty"`
	Artist               string      `json:"artist,omitempty"`
	Rarity               string      `json:"rarity,omitempty"`
	Images               *CardImages `json:"images,omitempty"`
}

type Attack struct {
	Name                string   `json:"name"`
	Cost                []string `json:"cost,omitempty"`
	ConvertedEnergyCost int      `json:"convertedEnergyCost"`
	Damage              string   `json:"damage,omitempty"`
	Text                string   `json:"text,omitempty"`
}

type TypeValue struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type CardSet struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Series       string `json:"series,omitempty"`
	PrintedTotal int    `json:"printedTotal,omitempty"`
	Total        int    `json:"total,omitempty"`
	ReleaseDate  string `json:"releaseDate,omitempty"`
}

type CardImages struct {
	Small string `json:"small,omitempty"`
	Large string `json:"large,omitempty"`
}

// SmallImage returns the small image URL, or "" when the card has none.
func (c *Card) SmallImage() string {
	if c.Images == nil {
		return ""
	}
	return c.Images.Small
}
