// Package constants contains values shared across layers.
package constants

// Deployment environments.
const (
	EnvDevelop    = "develop"
	EnvStaging    = "staging"
	EnvProduction = "production"
)

// Pub/Sub providers.
const (
	PubSubProviderLocal  = "local"
	PubSubProviderGoogle = "google"
)

// Discovery response strategies.
const (
	DiscoveryStrategyKeyword = "keyword"
)

// Payment metadata keys. Values are strings because the payment provider only
// stores string metadata.
const (
	MetadataKeyChallengeID    = "challengeId"
	MetadataKeyType           = "type"
	MetadataKeyUserID         = "userId"
	MetadataKeyChallengeTitle = "challengeTitle"
	MetadataKeyDuration       = "challengeDuration"
	MetadataKeyGuarantors     = "guarantors"
	MetadataKeyMetadataURI    = "metadataUri"
	MetadataKeyCustomerEmail  = "customerEmail"
)

// PaymentTypeChallengeDeposit marks payments that settle a challenge deposit.
const PaymentTypeChallengeDeposit = "challenge_deposit"

// Pub/Sub message attribute keys.
const (
	AttributeRequestID    = "request_id"
	AttributeSettlementID = "settlement_id"
	AttributeEventType    = "event_type"
)
