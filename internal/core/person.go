package core

import "strconv"

// Person is one of the two people the shared sheet was built for.
type Person struct {
	Key     string // short key used in report series
	Label   string
	Celular int64
	Color   string
}

var (
	Tani = Person{Key: "tani", Label: "Tani", Celular: 5511984119222, Color: "#4ADE80"}
	Fla  = Person{Key: "fla", Label: "Flá", Celular: 5511911407528, Color: "#F472B6"}
)

// KnownPeople is ordered the way the report stacks them.
var KnownPeople = []Person{Tani, Fla}

// PersonByCelular returns the known person for a phone number.
func PersonByCelular(celular int64) (Person, bool) {
	for _, p := range KnownPeople {
		if p.Celular == celular {
			return p, true
		}
	}
	return Person{}, false
}

// PersonKey is the decimal string the person filter compares against.
// Records without celular have an empty key.
func PersonKey(celular *int64) string {
	if celular == nil {
		return ""
	}
	return strconv.FormatInt(*celular, 10)
}

// PersonLabel maps a celular to its display name; unknown numbers show as
// their decimal string and a missing one as "".
func PersonLabel(celular *int64) string {
	if celular == nil {
		return ""
	}
	if p, ok := PersonByCelular(*celular); ok {
		return p.Label
	}
	return strconv.FormatInt(*celular, 10)
}
