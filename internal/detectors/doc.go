// Package detectors classifies cataloged files into tags such as cad,
// compress or ametank. Each detector looks at one aspect of a file (its
// extension and name, its leading bytes, or its OLE stream directory)
// and the Registry unions their results.
package detectors
