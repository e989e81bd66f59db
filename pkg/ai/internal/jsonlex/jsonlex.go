// ABOUTME: Small helpers for hand-written easyjson lexer decoders
// ABOUTME: Walks objects and arrays, skipping nulls, so payload decoders only switch on keys

package jsonlex

import "github.com/mailru/easyjson/jlexer"

// Object walks a JSON object, calling field for every non-null member.
// field must consume the value (SkipRecursive for unknown keys). A null
// object is skipped.
func Object(in *jlexer.Lexer, field func(in *jlexer.Lexer, key string)) {
	if in.IsNull() {
		in.Skip()
		return
	}
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		field(in, key)
		in.WantComma()
	}
	in.Delim('}')
}

// Array walks a JSON array, calling elem for every element. elem must
// consume the value. A null array is skipped.
func Array(in *jlexer.Lexer, elem func(in *jlexer.Lexer)) {
	if in.IsNull() {
		in.Skip()
		return
	}
	in.Delim('[')
	for !in.IsDelim(']') {
		elem(in)
		in.WantComma()
	}
	in.Delim(']')
}

// Decode runs a top-level decoder over data and reports lexer errors,
// including trailing garbage.
func Decode(data []byte, decode func(in *jlexer.Lexer)) error {
	in := jlexer.Lexer{Data: data}
	decode(&in)
	in.Consumed()
	return in.Error()
}
