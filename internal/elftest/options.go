package elftest

type Option func(w *Writer)

// WithReversedLayout writes section contents in reverse table order, so file
// offsets decrease with the section index.
func WithReversedLayout() Option {
	return func(w *Writer) {
		w.reversed = true
	}
}

// WithSectionHeaderPadding grows e_shentsize by n bytes of zero padding.
func WithSectionHeaderPadding(n int) Option {
	return func(w *Writer) {
		w.shpad = n
	}
}
