// Package pumpfun contains the Pump.fun bonding curve wire protocol.
//
// This package provides:
// - Program-derived address derivation for every account a trade touches.
// - Buy and sell instruction encoding with exact account ordering.
// - Bonding curve account decoding and constant-product quote math.
// - Decoding of create/buy/sell instructions observed on the stream.
//
// Detailed information about each function can be found in their respective source files:
//   - config.go: Program ids, discriminators and protocol constants.
//   - pda.go: Address derivation (bonding curve, creator vault, volume accumulators, fee config).
//   - instructions.go: Buy and sell instruction builders.
//   - bonding_curve.go: Curve account layout and swap math.
//   - trade.go: Buy/sell quotes with buffer and slippage.
//   - events.go: Instruction decoding for stream processing.
//   - errors.go: Program error codes and retry classification.
//   - global_account.go: Global account decoding.
//
// Usage example:
//
//	cfg := pumpfun.GetDefaultConfig()
//	accts := cfg.DeriveTradeAccounts(mint, creator, wallet.PublicKey)
//	quote := pumpfun.QuoteBuy(curve, 10_000_000, pumpfun.DefaultBuySlippageBps)
//	ix := pumpfun.BuildBuyInstruction(accts, quote.TokenAmount, quote.MaxSolCost)
package pumpfun
