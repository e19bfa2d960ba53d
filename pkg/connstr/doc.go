// Package connstr parses ADO.NET-style connection strings.
//
// A connection string is a sequence of key/value pairs separated by
// semicolons:
//
//	Provider=postgres; Metadata=res://shop; Provider Connection String="Host=db;Port=5432"
//
// Keys are compared case-insensitively and may be normalized through a
// caller-supplied synonym table. Values are unquoted, single-quoted or
// double-quoted; a quote character inside a quoted value is escaped by
// doubling it, and a literal '=' inside a key is written as "==".
//
// # Basic Usage
//
//	opts, err := connstr.Parse(`Server=db; User Id=app; Password="p;w"`, nil)
//	if err != nil {
//	    var syntaxErr *connstr.SyntaxError
//	    if errors.As(err, &syntaxErr) {
//	        log.Printf("bad connection string at offset %d", syntaxErr.Offset)
//	    }
//	    return err
//	}
//	password := opts.Get("password") // "p;w"
//
// Parse produces two views of the input. The entries map holds one value per
// canonical key; the last pair for a key wins. The KeyChain records every
// accepted pair in input order, duplicates included, and is what connection
// pools compare when bucketing connections.
//
// # DataDirectory
//
// A value starting with |DataDirectory| is left untouched by the parser.
// Expansion belongs to package datadir, which must re-validate the expanded
// path before it is used on the filesystem.
//
// Options values are immutable once returned and safe for concurrent use.
package connstr
