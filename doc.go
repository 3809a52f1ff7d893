/*
Package objstore implements an embedded object store on top of a key-value
store (Bolt by default; Badger, SQLite and an in-memory store are also
available).

We implement:

1. Entities, immutable-ish byte blobs identified by dense EntityIDs.

2. Values, a small tagged union (bool, int, float, string, list, dict,
custom object) that native Go values are converted to and from.

3. Types, persisted descriptors of custom (struct) types, each with an
optional list of primary fields that must be unique among stored objects.

4. Queries, full scans filtered by predicates over decoded objects.

# Technical Details

**Buckets.**
Two flat keyspaces: "entities" and "types". Keys are the lowercase hex form
of the id, with no padding. Ids are allocated as one past the largest id
found, which is recomputed by a scan on open.

**Flattening.**
Every composite value stores its children as separate entities first and
refers to them by id. A list is a concatenation of refs, a dict is a ref to
a list of [key, value] lists, and a custom object is a type id plus a ref
to the list of its field values. Object graphs with cycles cannot be
flattened this way and are rejected.

**Types.**
A type record (in "types") holds the 8-byte id of a descriptor entity,
itself a dict {"name", "primary_fields", "fields"}. Type ids never change.

## Binary encoding

Each entity is a 1-byte tag followed by the payload. All integers are
big-endian.

	tag  kind    payload
	0    ref     entity id (8 bytes)
	1    bool    0 or 1 (1 byte)
	2    int     two's complement (8 bytes)
	3    list    N refs, 9 bytes each, no length prefix
	4    float   IEEE-754 bits (8 bytes)
	5    string  UTF-16BE, no BOM
	6    dict    ref to the pair list (9 bytes)
	7    custom  type id (2 bytes), ref to the field list (9 bytes)

Writes of a composite value are not atomic: a crash between storing the
children and the parent leaves unreachable children, and a crash while
overwriting can leave refs dangling, which reads report as corruption.
*/
package objstore
