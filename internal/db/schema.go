package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- ACCOUNT TABLE (payment status + materialized credit balance)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS account SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON account TYPE string;
    DEFINE FIELD IF NOT EXISTS plan ON account TYPE string DEFAULT "standard";
    DEFINE FIELD IF NOT EXISTS balance ON account TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS email ON account TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS created_at ON account TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS account_user ON account FIELDS user_id UNIQUE;

    -- ==========================================================================
    -- CREDIT_TX TABLE (immutable ledger entries)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS credit_tx SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON credit_tx TYPE string;
    DEFINE FIELD IF NOT EXISTS type ON credit_tx TYPE string
        ASSERT $value INSIDE ["purchase", "usage", "refund", "manual_add"];
    DEFINE FIELD IF NOT EXISTS credits ON credit_tx TYPE int;
    DEFINE FIELD IF NOT EXISTS description ON credit_tx TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON credit_tx TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS credit_tx_user ON credit_tx FIELDS user_id;

    -- ==========================================================================
    -- PACK TABLE (user-owned collections of sources)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS pack SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON pack TYPE string;
    DEFINE FIELD IF NOT EXISTS name ON pack TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON pack TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS pack_user ON pack FIELDS user_id;

    -- ==========================================================================
    -- SOURCE TABLE (per-job pipeline state)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS source SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON source TYPE string;
    DEFINE FIELD IF NOT EXISTS pack_id ON source TYPE string;
    DEFINE FIELD IF NOT EXISTS filename ON source TYPE string;
    DEFINE FIELD IF NOT EXISTS status ON source TYPE string
        ASSERT $value INSIDE ["pending", "extracting", "ready_for_analysis",
                              "analyzing", "completed", "cancelled", "failed"];
    DEFINE FIELD IF NOT EXISTS progress ON source TYPE float DEFAULT 0.0;
    DEFINE FIELD IF NOT EXISTS total_chunks ON source TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS processed_chunks ON source TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS total_input_tokens ON source TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS total_output_tokens ON source TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS total_cost ON source TYPE float DEFAULT 0.0;
    DEFINE FIELD IF NOT EXISTS error_message ON source TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS created_at ON source TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON source TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS source_user ON source FIELDS user_id;
    DEFINE INDEX IF NOT EXISTS source_pack ON source FIELDS pack_id;
`
