package descriptor

import (
	"bytes"
	"fmt"
	"io"

	"github.com/magiconair/properties"
)

// Parse decodes a Java properties document into a Descriptor.
func Parse(data []byte) (Descriptor, error) {
	loader := &properties.Loader{
		Encoding:         properties.ISO_8859_1,
		DisableExpansion: true,
	}
	p, err := loader.LoadBytes(data)
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return FromProperties(p)
}

// FromProperties builds a Descriptor from loaded properties.
func FromProperties(p *properties.Properties) (Descriptor, error) {
	get := func(key string) string {
		v, _ := p.Get(key)
		return v
	}
	return New(
		get(KeyBuildVersion),
		get(KeyRuntimeURL),
		get(KeyRuntimeSignature),
		get(KeyRuntimeFolderName),
	)
}

// Properties converts the descriptor to a properties set in key order.
func (d Descriptor) Properties() *properties.Properties {
	p := properties.NewProperties()
	p.DisableExpansion = true
	fields := d.Fields()
	for _, key := range Keys {
		// Set only fails on circular ${} references, which expansion being off rules out.
		_, _, _ = p.Set(key, fields[key])
	}
	return p
}

// WriteTo writes the descriptor in the Java properties format.
func (d Descriptor) WriteTo(w io.Writer) (int64, error) {
	n, err := d.Properties().Write(w, properties.ISO_8859_1)
	return int64(n), err
}

// Marshal returns the properties encoding of d.
func (d Descriptor) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := d.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
