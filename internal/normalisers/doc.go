// Package normalisers provides implementations of the Normaliser interface
// for the document formats found in job folders. Each normaliser knows how
// to extract text from one family of file extensions.
//
// Normalisers are registered with the Registry at startup.
package normalisers
