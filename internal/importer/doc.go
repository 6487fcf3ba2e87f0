// Package importer brings Debian source packages under version control.
//
// Every import commits the upstream sources onto the upstream branch and
// the unpacked package onto the packaging branch, joining both lineages in
// a merge commit. Tags mark each imported version. All ref changes of an
// import are journaled and undone when a later step fails.
package importer
