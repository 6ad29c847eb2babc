package model

// RawRow carries one source line as column name -> raw cell text.
// It is the transport contract between the CSV source and the ingest pipeline.
type RawRow map[string]string
