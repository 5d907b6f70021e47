package wire

import (
	"encoding/json"
	"fmt"
	"mime"

	"github.com/fxamacker/cbor/v2"
)

// Content types understood by the server.
const (
	ContentTypeJSON = "application/json"
	ContentTypeCBOR = "application/cbor"
)

// Codec encodes and decodes wire messages for one content type. Name is
// the short form used in RPC content types, so a Codec can be registered
// with connect.WithCodec.
type Codec interface {
	Name() string
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type jsonCodec struct{}

func (jsonCodec) Name() string                  { return "json" }
func (jsonCodec) ContentType() string           { return ContentTypeJSON }
func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("wire: unmarshal json: %w", err)
	}
	return nil
}

type cborCodec struct{}

func (cborCodec) Name() string                  { return "cbor" }
func (cborCodec) ContentType() string           { return ContentTypeCBOR }
func (cborCodec) Marshal(v any) ([]byte, error) { return cborEncMode.Marshal(v) }

func (cborCodec) Unmarshal(data []byte, v any) error {
	if err := cbor.Unmarshal(data, v); err != nil {
		return fmt.Errorf("wire: unmarshal cbor: %w", err)
	}
	return nil
}

// JSON and CBOR are the available codecs.
var (
	JSON Codec = jsonCodec{}
	CBOR Codec = cborCodec{}
)

// ForContentType picks the codec for a Content-Type or Accept header
// value. Anything other than CBOR, including an empty value, gets JSON.
func ForContentType(header string) Codec {
	mediaType, _, err := mime.ParseMediaType(header)
	if err == nil && mediaType == ContentTypeCBOR {
		return CBOR
	}
	return JSON
}
