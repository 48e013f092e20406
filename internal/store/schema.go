package store

// Genesis parent constants. The first real block in a fresh black box
// chains off these hard-coded values rather than a null parent — this
// keeps the hash-recomputation rule in audit uniform, with no special
// case for block 1. These literal strings are part of the on-disk format
// and must never change.
const (
	GenesisParentID           = 0
	GenesisParentDTStamp      = "0"
	GenesisParentRandomString = "GenesisBlock:SEREBO_MauriceHTLing"
	GenesisParentHash         = "TheWord:OmAhHum"
)

// Required metadata keys, written once at creation. Re-insertion of
// either must fail against the table's primary key.
const (
	MetaCreationTimestamp = "creation_timestamp"
	MetaBlackboxID        = "blackboxID"
	MetaBlackboxPath      = "serebo_blackbox_path"
)

// BlackboxIDLength is the length of the random string stored under
// MetaBlackboxID, fixed for the life of the store.
const BlackboxIDLength = 512

var createTableStatements = []string{
	`create table if not exists metadata (
		key text primary key,
		value text not null)`,
	`create table if not exists systemdata (
		id integer primary key autoincrement,
		dtstamp text not null,
		key text not null,
		value text not null)`,
	`create table if not exists datalog (
		id integer primary key autoincrement,
		dtstamp text not null,
		hash text not null,
		data text,
		description text not null)`,
	`create unique index if not exists datalog_unique on datalog (
		dtstamp, hash)`,
	`create table if not exists blockchain (
		c_id integer primary key autoincrement,
		c_dtstamp text not null,
		c_randomstring text not null,
		c_hash text not null,
		p_id integer not null,
		p_dtstamp text not null,
		p_randomstring text not null,
		p_hash text not null,
		data text not null)`,
	`create table if not exists eventlog (
		id integer primary key autoincrement,
		dtstamp text not null,
		fid text not null,
		description text not null)`,
	`create table if not exists eventlog_datamap (
		dtstamp text not null,
		fid text not null,
		key text not null,
		value text not null)`,
	`create table if not exists notary (
		id integer primary key autoincrement,
		dtstamp text not null,
		alias text not null,
		owner text not null,
		email text not null,
		notarydts text not null,
		notaryauthorization text not null,
		notaryurl text not null)`,
}
