package cas

// PutRef stores v as an object of its own,
// in the backend s is writing to,
// and writes the object's digest to s.
func PutRef[T any](s *Sink, c Codec[T], v T) (Digest, error) {
	d, err := s.Nested(func(nested *Sink) error {
		return c.Encode(nested, v)
	})
	if err != nil {
		return Zero, err
	}
	return d, s.WriteDigest(d)
}

// GetRef reads a digest from s
// and decodes the object it refers to.
func GetRef[T any](s *Source, c Codec[T]) (T, error) {
	var result T

	d, err := s.ReadDigest()
	if err != nil {
		return result, err
	}
	err = s.Request(d, func(src *Source) error {
		v, err := c.Decode(src)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// Linked produces a Codec that stores each value out of line,
// as a separate object,
// and encodes only its digest.
// Equal values embedded in different parents are stored once.
func Linked[T any](c Codec[T]) Codec[T] {
	return NewCodec(
		func(s *Sink, v T) error {
			_, err := PutRef(s, c, v)
			return err
		},
		func(s *Source) (T, error) {
			return GetRef(s, c)
		},
	)
}
