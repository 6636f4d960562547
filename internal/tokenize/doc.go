// Package tokenize splits file names and search queries into the normalized
// word tokens stored in the search dictionary.
//
// Tokens are lowercased. Each token is accompanied by an ASCII
// transliteration and, for words containing umlauts, by a digraph spelling
// ("über" also yields "uber" and "ueber"), so that accent-insensitive search
// works without storing several encodings of the same file name.
package tokenize
