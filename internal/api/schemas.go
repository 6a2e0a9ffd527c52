package api

const transferSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["from_account_id", "to_account_id", "amount", "currency"],
  "properties": {
    "from_account_id": {"type": "string", "minLength": 1},
    "to_account_id": {"type": "string", "minLength": 1},
    "amount": {"type": "number", "exclusiveMinimum": 0},
    "currency": {"type": "string", "pattern": "^[A-Z]{3}$"}
  }
}`

const createAccountSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["client_id", "currency"],
  "properties": {
    "client_id": {"type": "string", "minLength": 1, "maxLength": 255},
    "currency": {"type": "string", "pattern": "^[A-Z]{3}$"},
    "opening_balance": {"type": "number", "minimum": 0}
  }
}`
