// Package web3 houses blockchain connectivity utilities: the chain client
// abstraction, YAML chain definitions, and unit helpers shared by the swap
// engine and the wallet lookups. Concrete EVM clients live in
// web3/ethereum, contract ABI descriptors in web3/contracts.
package web3
