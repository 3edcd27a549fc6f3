package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- ID COUNTERS
    -- ==========================================================================
    -- Persons and their items use integer record ids (person:1, event:7).
    DEFINE TABLE IF NOT EXISTS counter SCHEMALESS;
    DEFINE FUNCTION IF NOT EXISTS fn::next_id($tb: string) {
        RETURN (UPSERT type::record("counter", $tb) SET value = (value OR 0) + 1 RETURN AFTER)[0].value;
    };

    -- ==========================================================================
    -- PERSON TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS person SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS name ON person TYPE string ASSERT string::len(string::trim($value)) > 0;
    DEFINE FIELD IF NOT EXISTS avatar ON person TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS profile ON person TYPE object FLEXIBLE DEFAULT {};
    DEFINE FIELD IF NOT EXISTS created_at ON person TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON person TYPE option<datetime>;

    DEFINE INDEX IF NOT EXISTS person_name ON person FIELDS name UNIQUE;

    -- ==========================================================================
    -- PERSON ITEMS (owned by one person, removed with it)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS event SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS person ON event TYPE record<person>;
    DEFINE FIELD IF NOT EXISTS date ON event TYPE string;
    DEFINE FIELD IF NOT EXISTS location ON event TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS description ON event TYPE string;
    DEFINE FIELD IF NOT EXISTS source ON event TYPE string DEFAULT "user";
    DEFINE FIELD IF NOT EXISTS created_at ON event TYPE datetime DEFAULT time::now();
    DEFINE INDEX IF NOT EXISTS event_person ON event FIELDS person;

    DEFINE TABLE IF NOT EXISTS annotation SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS person ON annotation TYPE record<person>;
    DEFINE FIELD IF NOT EXISTS time ON annotation TYPE string;
    DEFINE FIELD IF NOT EXISTS location ON annotation TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS description ON annotation TYPE string;
    DEFINE FIELD IF NOT EXISTS source ON annotation TYPE string DEFAULT "user";
    DEFINE FIELD IF NOT EXISTS confirmed_by_user ON annotation TYPE bool DEFAULT true;
    DEFINE FIELD IF NOT EXISTS created_at ON annotation TYPE datetime DEFAULT time::now();
    DEFINE INDEX IF NOT EXISTS annotation_person ON annotation FIELDS person;

    DEFINE TABLE IF NOT EXISTS development SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS person ON development TYPE record<person>;
    DEFINE FIELD IF NOT EXISTS content ON development TYPE string;
    DEFINE FIELD IF NOT EXISTS type ON development TYPE string DEFAULT "resource";
    DEFINE FIELD IF NOT EXISTS source ON development TYPE string DEFAULT "user";
    DEFINE FIELD IF NOT EXISTS confirmed_by_user ON development TYPE bool DEFAULT true;
    DEFINE FIELD IF NOT EXISTS created_at ON development TYPE datetime DEFAULT time::now();
    DEFINE INDEX IF NOT EXISTS development_person ON development FIELDS person;

    -- ==========================================================================
    -- KNOWS RELATION
    -- ==========================================================================
    -- Stored in both directions; readers dedupe by unordered pair.
    DEFINE TABLE IF NOT EXISTS knows TYPE RELATION IN person OUT person SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS relation_type ON knows TYPE string;
    DEFINE FIELD IF NOT EXISTS confirmed_by_user ON knows TYPE bool DEFAULT true;
    DEFINE FIELD IF NOT EXISTS created_at ON knows TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS unique_key ON knows VALUE <string>in + "->" + <string>out;
    DEFINE INDEX IF NOT EXISTS unique_knows ON knows FIELDS unique_key UNIQUE;

    -- ==========================================================================
    -- CIRCLES (named person groups)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS circle SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS name ON circle TYPE string ASSERT string::len(string::trim($value)) > 0;
    DEFINE FIELD IF NOT EXISTS color ON circle TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON circle TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS circle_name ON circle FIELDS name UNIQUE;

    DEFINE TABLE IF NOT EXISTS member_of TYPE RELATION IN person OUT circle SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS assigned_by_user ON member_of TYPE bool DEFAULT true;
    DEFINE FIELD IF NOT EXISTS created_at ON member_of TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS unique_key ON member_of VALUE <string>in + "->" + <string>out;
    DEFINE INDEX IF NOT EXISTS unique_member ON member_of FIELDS unique_key UNIQUE;

    -- ==========================================================================
    -- GRAPH LAYOUT (one row per user, graph_layout:default)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS graph_layout SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS layout ON graph_layout TYPE object FLEXIBLE DEFAULT {};
    DEFINE FIELD IF NOT EXISTS updated_at ON graph_layout TYPE datetime DEFAULT time::now();
`
