package contracts

// ERC20ABI covers the token methods the swap engine and balance lookups use.
const ERC20ABI = `[
	{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8","internalType":"uint8"}]},
	{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string","internalType":"string"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address","internalType":"address"}],"outputs":[{"name":"","type":"uint256","internalType":"uint256"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address","internalType":"address"},{"name":"amount","type":"uint256","internalType":"uint256"}],"outputs":[{"name":"","type":"bool","internalType":"bool"}]}
]`

// QuoterABI is the static quoter's single-pool entry point.
const QuoterABI = `[
	{"type":"function","name":"quoteExactInputSingle","stateMutability":"view",
	 "inputs":[{"name":"params","type":"tuple","internalType":"struct IUniswapV3StaticQuoter.QuoteExactInputSingleParams","components":[
		{"name":"tokenIn","type":"address","internalType":"address"},
		{"name":"tokenOut","type":"address","internalType":"address"},
		{"name":"amountIn","type":"uint256","internalType":"uint256"},
		{"name":"fee","type":"uint24","internalType":"uint24"},
		{"name":"sqrtPriceLimitX96","type":"uint160","internalType":"uint160"}]}],
	 "outputs":[{"name":"amountOut","type":"uint256","internalType":"uint256"}]}
]`

// RouterABI is SwapRouter02's exactInputSingle.
const RouterABI = `[
	{"type":"function","name":"exactInputSingle","stateMutability":"payable",
	 "inputs":[{"name":"params","type":"tuple","internalType":"struct ISwapRouter.ExactInputSingleParams","components":[
		{"name":"tokenIn","type":"address","internalType":"address"},
		{"name":"tokenOut","type":"address","internalType":"address"},
		{"name":"fee","type":"uint24","internalType":"uint24"},
		{"name":"recipient","type":"address","internalType":"address"},
		{"name":"deadline","type":"uint256","internalType":"uint256"},
		{"name":"amountIn","type":"uint256","internalType":"uint256"},
		{"name":"amountOutMinimum","type":"uint256","internalType":"uint256"},
		{"name":"sqrtPriceLimitX96","type":"uint160","internalType":"uint160"}]}],
	 "outputs":[{"name":"amountOut","type":"uint256","internalType":"uint256"}]}
]`
