package store

// schema is applied with CREATE TABLE IF NOT EXISTS on every Open, so it
// is safe to run against an existing database. Table and column names are
// kept stable for compatibility with existing databases: fx, bond, desk,
// trader, book, bond_record, event_log, fx_event_log, price_event_log,
// event_exception_log.
const schema = `
CREATE TABLE IF NOT EXISTS fx (
  currency_id TEXT PRIMARY KEY,
  rate        TEXT NOT NULL,
  initial     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS bond (
  bond_id       TEXT PRIMARY KEY,
  currency_id   TEXT NOT NULL REFERENCES fx(currency_id),
  price         TEXT,
  initial_price TEXT
);

CREATE TABLE IF NOT EXISTS desk (
  desk_id TEXT PRIMARY KEY,
  cash    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trader (
  trader_id TEXT PRIMARY KEY,
  desk_id   TEXT NOT NULL REFERENCES desk(desk_id)
);

CREATE TABLE IF NOT EXISTS book (
  book_id   TEXT PRIMARY KEY,
  trader_id TEXT NOT NULL REFERENCES trader(trader_id)
);

CREATE TABLE IF NOT EXISTS bond_record (
  trader_id TEXT NOT NULL,
  book_id   TEXT NOT NULL,
  bond_id   TEXT NOT NULL,
  position  TEXT NOT NULL,
  PRIMARY KEY (trader_id, book_id, bond_id)
);

CREATE TABLE IF NOT EXISTS event_log (
  event_id        INTEGER PRIMARY KEY,
  desk_id         TEXT NOT NULL,
  trader_id       TEXT NOT NULL,
  book_id         TEXT NOT NULL,
  bond_id         TEXT NOT NULL,
  buy_sell        TEXT NOT NULL,
  quantity        TEXT NOT NULL,
  position        TEXT NOT NULL,
  price           TEXT NOT NULL,
  fx_rate         TEXT NOT NULL,
  value           TEXT NOT NULL,
  desk_cash_after TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS fx_event_log (
  event_id    INTEGER PRIMARY KEY,
  currency_id TEXT NOT NULL,
  rate        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS price_event_log (
  event_id INTEGER PRIMARY KEY,
  bond_id  TEXT NOT NULL,
  price    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS event_exception_log (
  event_id       INTEGER PRIMARY KEY,
  desk_id        TEXT NOT NULL,
  trader_id      TEXT NOT NULL,
  book_id        TEXT NOT NULL,
  bond_id        TEXT NOT NULL,
  buy_sell       TEXT NOT NULL,
  quantity       TEXT NOT NULL,
  price          TEXT,
  exclusion_type TEXT NOT NULL
);
`
