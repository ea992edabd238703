// Package redis implements the remote document engine behind the
// "remote:" URL scheme, backed by a Redis instance.
//
// Layout of one database named N inside Redis:
//
//	db:N:meta       string  existence marker, created with SETNX
//	db:N:classes    set     committed schema class names
//	db:N:rids       hash    external key → record id
//	db:N:dict       zset    external keys at score 0 (lexicographic order)
//	db:N:doc:<rid>  hash    one record: "_class" plus "f:"-prefixed fields
//
// Creation races between concurrent sessions are decided by SETNX on the
// marker key; the loser receives engine.ErrStorageExists. Class creation
// is a plain SADD and therefore atomic - the schema-commit race of
// embedded engines cannot occur against Redis.
//
// Range iteration uses ZRANGEBYLEX over the zero-score sorted set, which
// yields members in ascending lexicographic order, exactly the dictionary
// contract.
package redis
