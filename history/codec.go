package history

import (
	"encoding/json"
	"errors"
	"fmt"
)

const CurrentSchemaVersion = 1

var ErrVersionMismatch = errors.New("history: record version mismatch")

func EncodeGeneration(g Generation) ([]byte, error) {
	if g.SchemaVersion == 0 {
		g.SchemaVersion = CurrentSchemaVersion
	}
	return json.Marshal(g)
}

func DecodeGeneration(data []byte) (Generation, error) {
	var gen Generation
	if err := json.Unmarshal(data, &gen); err != nil {
		return Generation{}, err
	}
	if gen.SchemaVersion != CurrentSchemaVersion {
		return Generation{}, fmt.Errorf("%w: schema=%d want=%d", ErrVersionMismatch, gen.SchemaVersion, CurrentSchemaVersion)
	}
	return gen, nil
}
