// Package feed rebuilds per market event streams from exchange feed files
//
// A canonical buffer is newline delimited JSON. Each line decodes on its own, so one
// corrupt line never costs the rest of the file. Decoded records fold in input order into
// a map keyed by marketId (or id): records carrying mc are appended to the market's
// updates, and a marketDefinition replaces the market's previous definition.
//
// Only marketId, id, mc and marketDefinition are interpreted. Every other key rides along
// untouched inside the stored update and definition values.
package feed
