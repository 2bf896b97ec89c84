package tabular

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"replacechain/pkg/domain"
)

// WriteState writes state as indented JSON, the format read by ReadState.
func WriteState(w io.Writer, state domain.State) error {
	data, err := domain.EncodeState(state)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return fmt.Errorf("indent state: %w", err)
	}
	buf.WriteByte('\n')
	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// ReadState decodes a state file. Structural checks are left to the
// manager, which validates before installing.
func ReadState(r io.Reader) (domain.State, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.State{}, fmt.Errorf("read state: %w", err)
	}
	return domain.DecodeState(data)
}
