package match

import (
	"testing"

	"github.com/akida/ankitex/internal/models"
)

func note(deck, model string, fields map[string]string, tags ...string) models.Note {
	return models.Note{Deck: deck, Model: model, Fields: fields, Tags: tags}
}

func TestEquivalent_Reflexive(t *testing.T) {
	a := note("D", "M", map[string]string{"Front": "x < y"}, "t1")
	if !Equivalent(&a, &a) {
		t.Error("a note must be equivalent to itself")
	}
}

func TestEquivalent_Symmetric(t *testing.T) {
	a := note("D", "M", map[string]string{"Front": "a  b"})
	b := note("D", "M", map[string]string{"Front": "ab"})
	if Equivalent(&a, &b) != Equivalent(&b, &a) {
		t.Error("equivalence must be symmetric")
	}
}

func TestEquivalent_WhitespaceInsensitiveFields(t *testing.T) {
	a := note("D", "M", map[string]string{"Front": "2 + 2\n= 4"})
	b := note("D", "M", map[string]string{"Front": "2+2=4"})
	if !Equivalent(&a, &b) {
		t.Error("field whitespace must not matter")
	}
}

func TestEquivalent_EntityEscapes(t *testing.T) {
	a := note("D", "M", map[string]string{"Front": "x &lt; y &gt; z"})
	b := note("D", "M", map[string]string{"Front": "x<y>z"})
	if !Equivalent(&a, &b) {
		t.Error("&lt;/&gt; must compare equal to literal angle brackets")
	}
}

func TestEquivalent_TagOrderSensitive(t *testing.T) {
	a := note("D", "M", map[string]string{"F": "v"}, "x", "y")
	b := note("D", "M", map[string]string{"F": "v"}, "y", "x")
	if Equivalent(&a, &b) {
		t.Error("tag order must matter")
	}
}

func TestEquivalent_TagSetMismatch(t *testing.T) {
	a := note("D", "M", map[string]string{"F": "v"}, "x")
	b := note("D", "M", map[string]string{"F": "v"})
	if Equivalent(&a, &b) {
		t.Error("differing tags must not be equivalent")
	}
}

func TestEquivalent_EmptyFieldsExcluded(t *testing.T) {
	a := note("D", "M", map[string]string{"Front": "v", "Back": ""})
	b := note("D", "M", map[string]string{"Front": "v"})
	if !Equivalent(&a, &b) {
		t.Error("empty-valued fields must be excluded from comparison")
	}
}

func TestEquivalent_FieldOrderInsensitive(t *testing.T) {
	a := note("D", "M", map[string]string{"Front": "1", "Back": "2"})
	b := note("D", "M", map[string]string{"Back": "2", "Front": "1"})
	if !Equivalent(&a, &b) {
		t.Error("field order must not matter")
	}
}

func TestEquivalent_StructuralMismatch(t *testing.T) {
	base := note("D", "M", map[string]string{"F": "v"})
	otherDeck := note("E", "M", map[string]string{"F": "v"})
	otherModel := note("D", "N", map[string]string{"F": "v"})
	if Equivalent(&base, &otherDeck) || Equivalent(&base, &otherModel) {
		t.Error("deck and model must match exactly")
	}
}

func TestEquivalent_DifferentValues(t *testing.T) {
	a := note("D", "M", map[string]string{"F": "v"})
	b := note("D", "M", map[string]string{"F": "w"})
	if Equivalent(&a, &b) {
		t.Error("different field values must not be equivalent")
	}
}

func TestEquivalent_IgnoresID(t *testing.T) {
	id1, id2 := int64(1), int64(2)
	a := note("D", "M", map[string]string{"F": "v"})
	b := note("D", "M", map[string]string{"F": "v"})
	a.ID, b.ID = &id1, &id2
	if !Equivalent(&a, &b) {
		t.Error("identifiers must not affect equivalence")
	}
}

func TestIDConflict(t *testing.T) {
	id1, id2 := int64(1), int64(2)
	a := note("D", "M", map[string]string{"F": "v"})
	b := a
	if IDConflict(&a, &b) {
		t.Error("no conflict without identifiers")
	}
	a.ID = &id1
	if IDConflict(&a, &b) {
		t.Error("no conflict when only one side has an identifier")
	}
	b.ID = &id2
	if !IDConflict(&a, &b) {
		t.Error("differing identifiers on equivalent notes must conflict")
	}
	b.ID = &id1
	if IDConflict(&a, &b) {
		t.Error("equal identifiers must not conflict")
	}
}
