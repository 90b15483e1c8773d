package term

// Well-known annotation relations. Sheet columns with these names map onto
// them directly, so they are always resolved and never need a relations sheet.
var (
	RelDefinition       = Identifier{ID: "IAO:0000115", Label: "definition"}
	RelCurationStatus   = Identifier{ID: "IAO:0000114", Label: "has curation status"}
	RelDefinitionSource = Identifier{ID: "IAO:0000119", Label: "definition source"}
	RelExample          = Identifier{ID: "IAO:0000112", Label: "example of usage"}
	RelCuratorNote      = Identifier{ID: "IAO:0000232", Label: "curator note"}
	RelEditorNote       = Identifier{ID: "IAO:0000116", Label: "editor note"}
	RelElucidation      = Identifier{ID: "IAO:0000600", Label: "elucidation"}
	RelSynonym          = Identifier{ID: "IAO:0000118", Label: "alternative term"}
	RelComment          = Identifier{ID: "rdfs:comment", Label: "comment"}
	RelCrossReference   = Identifier{ID: "oboInOwl:hasDbXref", Label: "database cross reference"}
	RelInSubset         = Identifier{ID: "oboInOwl:inSubset", Label: "in subset"}
)

var builtinRelations = []Identifier{
	RelDefinition, RelCurationStatus, RelDefinitionSource, RelExample, RelCuratorNote,
	RelEditorNote, RelElucidation, RelSynonym, RelComment, RelCrossReference, RelInSubset,
}

// BuiltinRelations returns the well-known annotation relations.
func BuiltinRelations() []Identifier {
	out := make([]Identifier, len(builtinRelations))
	copy(out, builtinRelations)
	return out
}

func IsBuiltinRelation(id Identifier) bool {
	for _, b := range builtinRelations {
		if b.Same(id) {
			return true
		}
	}
	return false
}
