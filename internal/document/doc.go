// Package document shrinks and renders stored documents.
//
// PDFs are compressed with a configurable external command (ImageMagick by
// default). A run is rejected when the PDF has more than MaxCompressPages
// pages, when the tool prints a known error, exits non-zero, times out, or
// produces an empty or larger file. OpenDocument text files are stripped of
// embedded objects and pictures by rewriting the zip container.
//
// HTML documents are rendered to PDF with a second command template
// (wkhtmltopdf by default) whose page layout can be steered with directives
// embedded in the document:
//
//	<!-- pdf orientation landscape, pdf papersize exact 52mmx86mm end -->
//
// All commands receive their input and output through files in a private
// temporary directory that is removed when the run finishes.
package document
