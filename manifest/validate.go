package manifest

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

// validate checks decoded TOML against the embedded CUE schema. Unknown
// sections and keys are rejected because #Manifest is a closed definition.
func validate(raw map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Manifest"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("manifest schema: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	v := schema.Unify(ctx.Encode(raw))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid manifest: %s", cueerrors.Details(err, nil))
	}
	return nil
}
