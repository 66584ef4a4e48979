/*
Package media implements attachment ingestion and the lifecycle of media
records attached to shelter entities (animals, people, lost and found
animals, waiting list entries and animal control incidents).

# Ingest

[Service.AttachFile] runs one upload through

	receive -> classify -> transform -> store -> record -> default election

Pictures are auto-rotated from their EXIF orientation, scaled into the
incoming scale box and re-encoded as JPEG. PDFs are compressed when the
policy asks for it and the result is smaller. Transform failures never fail
an upload: the original bytes are stored and the failure is logged and
counted.

The record insert, blob write and default election run in one transaction.
If the transaction fails the blob is removed again.

# Preferences

Each entity (a [Link]) has at most one web preferred picture, one doc
preferred picture and one preferred video link. Every change to these flags
runs inside [database.Database.WithTx], so concurrent requests cannot leave
two holders or, after a delete, none when a JPEG is left.

# Errors

Rejected operations return a *[ValidationError]; test with
errors.Is(err, ErrValidation). A record that changed between read and write
yields an error matching both ErrValidation and ErrConflict. Missing records
match ErrNotFound.
*/
package media
