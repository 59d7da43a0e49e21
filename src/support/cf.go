/*
 * Copyright 2025 Ted Dunning
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package support

/*
NearestFraction finds the best approximation c/d ≈ a/b with d <= maxDenominator.

Returns c, d and the error a/b - c/d as floating point.

A Multisynth read back from a clock generator holds its divider as the packed
fields P1, P2 and P3, which expand to a fraction with a denominator of 128*P3.
That fraction is not in lowest terms and its denominator can be larger than
anything the chip can express as b/c, so turning it back into the a + b/c a
user would recognise means finding the closest fraction with c < 2^20. When
the registers were written from an a + b/c in the first place, the answer is
that fraction exactly (reduced to lowest terms).

The method used is by creating terms of a continued fraction until the
denominator of the rational value of the continued fraction would be too big.
*/
func NearestFraction(a, b, maxDenominator uint64) (c, d uint64, eps float64) {
	c, d = continuedFraction(a, b, 0, 1, maxDenominator)
	eps = float64(a)/float64(b) - float64(c)/float64(d)
	return c, d, eps
}

/*
continuedFraction finds a continued fraction approximation for a/b and returns
its rational value as two integers.

Any rational a/b can be written as

	cf(a, b) = floor(a/b) + rem(a/b) / b = floor(a/b) + 1 / cf(b, rem(a/b))

Truncating this expansion gives the best rational approximation for the
resulting denominator. The recursion stops when the denominator would exceed
the limit; to know that, the denominators of the last two convergents are
carried along in e and f, starting at 0 and 1.
*/
func continuedFraction(a, b, e, f, maxDenominator uint64) (c, d uint64) {
	term := a / b
	denom := f + term*e
	if denom > maxDenominator {
		return 1, 0
	}
	ax := a - term*b
	if ax == 0 {
		return term, 1
	}
	// a / b = term + ax/b = term + 1 / cf(b, ax) = (term*cx + dx) / cx
	cx, dx := continuedFraction(b, ax, denom, e, maxDenominator)
	return term*cx + dx, cx
}
